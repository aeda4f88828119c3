// Package security flags messages and uploads that look encrypted, carry hidden
// payloads or contain script injection. The verdict is advisory: callers attach it
// to the stored message and never block on it, except the upload gate which
// rejects files rated high.
package security

import (
	"bytes"
	"math"
	"path/filepath"
	"regexp"
	"strings"
)

// RiskLevel of a message or file.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Flags is the verdict stored on every message.
type Flags struct {
	HasEncryption        bool      `json:"has_encryption"`
	HasSteganographyRisk bool      `json:"has_steganography_risk"`
	HasMaliciousPatterns bool      `json:"has_malicious_patterns"`
	HasSuspiciousContent bool      `json:"has_suspicious_content"`
	RiskLevel            RiskLevel `json:"risk_level"`
	Issues               []string  `json:"issues"`
}

// FileReport is the upload-time inspection result for a file.
type FileReport struct {
	Extension          string    `json:"extension"`
	SteganographyRisk  bool      `json:"steganography_risk"`
	SuspiciousMetadata bool      `json:"suspicious_metadata"`
	RiskLevel          RiskLevel `json:"risk_level"`
	Issues             []string  `json:"issues"`
}

// Classifier is the black box the message pipeline and upload handler consult.
type Classifier interface {
	// ClassifyMessage rates the text and the name of an attached file, if any.
	ClassifyMessage(text, filename string) Flags
	// InspectFile rates an uploaded file from its name and content.
	InspectFile(filename string, data []byte) FileReport
}

var (
	base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)
	hexPattern    = regexp.MustCompile(`^[0-9a-fA-F]+$`)

	maliciousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script[^>]*>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)eval\s*\(`),
		regexp.MustCompile(`(?i)exec\s*\(`),
		regexp.MustCompile(`__import__`),
		regexp.MustCompile(`os\.system`),
		regexp.MustCompile(`subprocess\.`),
	}

	// container formats that can hide a payload in their pixel or sample data
	stegoExtensions = map[string]bool{
		"png": true, "jpg": true, "jpeg": true, "bmp": true, "gif": true,
		"wav": true, "mp3": true, "flac": true, "mp4": true, "avi": true, "mov": true,
	}

	executableExtensions = map[string]bool{
		"exe": true, "bat": true, "cmd": true, "sh": true, "ps1": true,
		"js": true, "vbs": true, "jar": true, "msi": true, "dll": true, "scr": true,
	}

	suspiciousMarkers = [][]byte{
		[]byte("steghide"),
		[]byte("openstego"),
		[]byte("outguess"),
		[]byte("BEGIN PGP"),
		[]byte("Salted__"),
	}
)

const (
	minAnalysedLength = 8
	entropyThreshold  = 6.0
	// only the head and tail of a file are scanned for tool signatures
	markerScanWindow = 64 * 1024
)

type heuristicClassifier struct{}

// NewClassifier returns the heuristic classifier.
func NewClassifier() Classifier {
	return heuristicClassifier{}
}

func (heuristicClassifier) ClassifyMessage(text, filename string) Flags {
	flags := Flags{Issues: []string{}}

	if text != "" {
		if encrypted, _ := detectEncryption(text); encrypted {
			flags.HasEncryption = true
			flags.Issues = append(flags.Issues, "encrypted_content_detected")
		}
		if matchesMalicious(text) {
			flags.HasMaliciousPatterns = true
			flags.Issues = append(flags.Issues, "malicious_pattern_detected")
		}
	}

	if filename != "" {
		ext := extension(filename)
		if stegoExtensions[ext] {
			flags.HasSteganographyRisk = true
			flags.Issues = append(flags.Issues, "steganography_risk:"+ext)
		}
		if executableExtensions[ext] {
			flags.HasSuspiciousContent = true
			flags.Issues = append(flags.Issues, "executable_attachment:"+ext)
		}
	}

	flags.RiskLevel = riskFor(flags)
	return flags
}

func riskFor(f Flags) RiskLevel {
	switch {
	case f.HasEncryption && f.HasSteganographyRisk, f.HasMaliciousPatterns:
		return RiskHigh
	case f.HasEncryption || f.HasSteganographyRisk || f.HasSuspiciousContent:
		return RiskMedium
	default:
		return RiskLow
	}
}

func (heuristicClassifier) InspectFile(filename string, data []byte) FileReport {
	ext := extension(filename)
	report := FileReport{Extension: ext, RiskLevel: RiskLow, Issues: []string{}}

	if executableExtensions[ext] {
		report.SuspiciousMetadata = true
		report.Issues = append(report.Issues, "executable_file")
	}
	if stegoExtensions[ext] {
		report.SteganographyRisk = true
		report.RiskLevel = RiskMedium
		report.Issues = append(report.Issues, "media_container")
	}
	if hasSuspiciousMarker(data) {
		report.SuspiciousMetadata = true
		report.Issues = append(report.Issues, "suspicious_signature")
	}

	if report.SuspiciousMetadata {
		report.RiskLevel = RiskHigh
	}
	return report
}

// detectEncryption averages the scores of every heuristic that fired.
func detectEncryption(text string) (bool, float64) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minAnalysedLength {
		return false, 0
	}

	var scores []float64
	if len(trimmed) >= 12 && len(trimmed)%4 == 0 && base64Pattern.MatchString(trimmed) {
		scores = append(scores, 0.7)
	}
	if len(trimmed) >= 20 && len(trimmed)%2 == 0 && hexPattern.MatchString(trimmed) {
		scores = append(scores, 0.6)
	}
	if strings.Contains(trimmed, "BEGIN PGP") || strings.Contains(trimmed, "BEGIN ENCRYPTED") {
		scores = append(scores, 0.95)
	}
	if strings.Contains(trimmed, "BEGIN CERTIFICATE") {
		scores = append(scores, 0.9)
	}
	if shannonEntropy(trimmed) > entropyThreshold {
		scores = append(scores, 0.65)
	}

	if len(scores) == 0 {
		return false, 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	avg := sum / float64(len(scores))
	return avg > 0.5, avg
}

func shannonEntropy(s string) float64 {
	counts := make(map[rune]int)
	total := 0
	for _, r := range s {
		counts[r]++
		total++
	}
	var entropy float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func matchesMalicious(text string) bool {
	for _, p := range maliciousPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func hasSuspiciousMarker(data []byte) bool {
	windows := [][]byte{data}
	if len(data) > 2*markerScanWindow {
		windows = [][]byte{data[:markerScanWindow], data[len(data)-markerScanWindow:]}
	}
	for _, w := range windows {
		for _, m := range suspiciousMarkers {
			if bytes.Contains(w, m) {
				return true
			}
		}
	}
	return false
}

func extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}
