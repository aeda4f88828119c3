package security

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMessage_PlainText(t *testing.T) {
	flags := NewClassifier().ClassifyMessage("hello everyone, how is it going?", "")

	assert.False(t, flags.HasEncryption)
	assert.False(t, flags.HasMaliciousPatterns)
	assert.False(t, flags.HasSteganographyRisk)
	assert.Equal(t, RiskLow, flags.RiskLevel)
	assert.NotNil(t, flags.Issues)
	assert.Empty(t, flags.Issues)
}

func TestClassifyMessage_ShortTextIsNotAnalysed(t *testing.T) {
	flags := NewClassifier().ClassifyMessage("aGk=", "")
	assert.False(t, flags.HasEncryption)
	assert.Equal(t, RiskLow, flags.RiskLevel)
}

func TestClassifyMessage_Encryption(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"base64", "U2FsdGVkX1+vupppZksvRf5pq5g5XjFRlipRkwB0K1Y="},
		{"hex", "deadbeefcafebabe0011223344556677"},
		{"pgp armor", "-----BEGIN PGP MESSAGE-----\nhQEMA\n-----END PGP MESSAGE-----"},
	}
	c := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := c.ClassifyMessage(tt.text, "")
			assert.True(t, flags.HasEncryption)
			assert.Equal(t, RiskMedium, flags.RiskLevel)
			assert.Contains(t, flags.Issues, "encrypted_content_detected")
		})
	}
}

func TestClassifyMessage_Malicious(t *testing.T) {
	c := NewClassifier()
	for _, text := range []string{
		"<script>alert(1)</script>",
		"click javascript:void(0)",
		"please run eval (payload)",
		"import os; os.system('rm -rf /')",
	} {
		flags := c.ClassifyMessage(text, "")
		assert.True(t, flags.HasMaliciousPatterns, text)
		assert.Equal(t, RiskHigh, flags.RiskLevel, text)
	}
}

func TestClassifyMessage_Attachments(t *testing.T) {
	c := NewClassifier()

	image := c.ClassifyMessage("", "holiday.PNG")
	assert.True(t, image.HasSteganographyRisk)
	assert.Equal(t, RiskMedium, image.RiskLevel)

	doc := c.ClassifyMessage("notes", "notes.pdf")
	assert.False(t, doc.HasSteganographyRisk)
	assert.Equal(t, RiskLow, doc.RiskLevel)

	// encrypted text together with a media container is rated high
	both := c.ClassifyMessage("-----BEGIN PGP MESSAGE-----", "cat.jpg")
	assert.Equal(t, RiskHigh, both.RiskLevel)

	exe := c.ClassifyMessage("", "setup.exe")
	assert.True(t, exe.HasSuspiciousContent)
	assert.Equal(t, RiskMedium, exe.RiskLevel)
}

func TestInspectFile(t *testing.T) {
	c := NewClassifier()

	report := c.InspectFile("report.pdf", []byte("%PDF-1.7 plain"))
	assert.Equal(t, RiskLow, report.RiskLevel)
	assert.Equal(t, "pdf", report.Extension)

	report = c.InspectFile("photo.jpg", []byte{0xff, 0xd8, 0xff})
	assert.True(t, report.SteganographyRisk)
	assert.Equal(t, RiskMedium, report.RiskLevel)

	report = c.InspectFile("photo.png", append([]byte{0x89, 'P', 'N', 'G'}, []byte("embedded by steghide")...))
	assert.True(t, report.SuspiciousMetadata)
	assert.Equal(t, RiskHigh, report.RiskLevel)

	// marker in the tail of a large file is still found
	large := append(bytes.Repeat([]byte{0}, 3*markerScanWindow), []byte("Salted__")...)
	report = c.InspectFile("blob.txt", large)
	assert.Equal(t, RiskHigh, report.RiskLevel)
}

func TestShannonEntropy(t *testing.T) {
	assert.Equal(t, 0.0, shannonEntropy("aaaa"))
	assert.InDelta(t, 1.0, shannonEntropy("abab"), 1e-9)
}
