// Package pipeline advances library items through the configured processing
// stages.
//
// The Manager polls the library store, reclaims stale work via heartbeats,
// and feeds items into registered stage handlers (extract, transcribe,
// document, embeddings) while capturing progress and failure metadata. It
// also aggregates library health, calls stage health checks, and publishes
// run events to the progress hub so attached clients can follow along.
//
// A single processing loop runs all stages. Spoken content walks the full
// lifecycle; text-bearing content forks past transcription at the extracted
// status. Add new lifecycle stages by extending StageSet, updating the
// library status enums, and teaching the manager how to transition items;
// this package is the authoritative home for that coordination logic.
package pipeline
