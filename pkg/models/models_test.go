package models_test

import (
	"testing"

	"github.com/kiranshivaraju/ednaflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestParseFileType(t *testing.T) {
	tests := []struct {
		in   string
		want models.FileType
		ok   bool
	}{
		{"fasta", models.FileTypeFASTA, true},
		{"FASTA", models.FileTypeFASTA, true},
		{"FastQ", models.FileTypeFASTQ, true},
		{" csv ", models.FileTypeCSV, true},
		{"bam", "", false},
		{"", "", false},
		{"fasta.gz", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := models.ParseFileType(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
