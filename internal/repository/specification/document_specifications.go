package specification

import "gorm.io/gorm"

// HasExtractedText skips documents whose text extraction never produced output
type HasExtractedText struct{}

func (s HasExtractedText) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("extracted_text IS NOT NULL AND extracted_text <> ''")
}
