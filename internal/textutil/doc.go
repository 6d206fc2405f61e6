// Package textutil provides filename sanitization and display-title helpers.
package textutil
