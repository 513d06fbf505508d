//go:build tesseract

package main

// Registers the local Tesseract engine (OCR_PROVIDER=tesseract).
import _ "github.com/custodia-labs/compliance-sync/internal/adapters/driven/ocr/tesseract"
