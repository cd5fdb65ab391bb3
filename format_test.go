package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "10.0 MB", formatSize(10<<20))
	assert.Equal(t, "2.0 GB", formatSize(2<<30))
}

func TestFormatTime_Zero(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-", formatTime(time.Time{}))
	assert.NotEqual(t, "-", formatTime(time.Now()))
}

func TestPrintTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	printTable(&buf, []string{"CHANNEL", "ITEMS"}, [][]string{
		{"-1001", "12"},
		{"@pics", "3"},
	})

	assert.Equal(t, "CHANNEL  ITEMS\n-1001    12\n@pics    3\n", buf.String())
}
