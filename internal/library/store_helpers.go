package library

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "library_items.id, library_items.title, library_items.content_type, library_items.status, library_items.source_file_name, library_items.staged_path, library_items.library_path, library_items.extracted_path, library_items.transcript_path, library_items.document_path, library_items.embeddings_path, library_items.metadata_json, library_items.error_message, library_items.error_category, library_items.created_at, library_items.updated_at, library_items.progress_stage, library_items.progress_percent, library_items.progress_message, library_items.last_heartbeat, library_items.deleted_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id               int64
		title            sql.NullString
		contentType      string
		statusStr        string
		sourceFileName   sql.NullString
		stagedPath       sql.NullString
		libraryPath      sql.NullString
		extractedPath    sql.NullString
		transcriptPath   sql.NullString
		documentPath     sql.NullString
		embeddingsPath   sql.NullString
		metadata         sql.NullString
		errorMessage     sql.NullString
		errorCategory    sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		lastHeartbeatRaw sql.NullString
		deletedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&contentType,
		&statusStr,
		&sourceFileName,
		&stagedPath,
		&libraryPath,
		&extractedPath,
		&transcriptPath,
		&documentPath,
		&embeddingsPath,
		&metadata,
		&errorMessage,
		&errorCategory,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&lastHeartbeatRaw,
		&deletedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:              id,
		Title:           title.String,
		ContentType:     ContentType(contentType),
		Status:          Status(statusStr),
		SourceFileName:  sourceFileName.String,
		StagedPath:      stagedPath.String,
		LibraryPath:     libraryPath.String,
		ExtractedPath:   extractedPath.String,
		TranscriptPath:  transcriptPath.String,
		DocumentPath:    documentPath.String,
		EmbeddingsPath:  embeddingsPath.String,
		MetadataJSON:    metadata.String,
		ErrorMessage:    errorMessage.String,
		ErrorCategory:   errorCategory.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	if deletedRaw.Valid {
		if deleted, err := parseTimeString(deletedRaw.String); err == nil {
			item.DeletedAt = &deleted
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
