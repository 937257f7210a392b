package version

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
)

var (
	tripleNewline = regexp.MustCompile(`\n{3,}`)
	spaceRun      = regexp.MustCompile(`[ \t]+`)
)

// NormalizeText canonicalizes page text before hashing so that incidental
// whitespace differences between crawls do not count as content changes.
// Line endings become LF, runs of three or more newlines collapse to two,
// runs of spaces and tabs collapse to one space, and every line is trimmed.
func NormalizeText(text string) string {
	normalized := strings.TrimSpace(text)
	normalized = strings.ReplaceAll(normalized, "\r\n", "\n")
	normalized = tripleNewline.ReplaceAllString(normalized, "\n\n")
	normalized = spaceRun.ReplaceAllString(normalized, " ")

	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

// ContentHash is the hash of the normalized page text. Equal hashes mean the
// page content is unchanged and re-ingestion is a no-op.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// StableSectionID derives the identifier of a chunk from the canonical URL
// and the chunk index only. The same logical chunk keeps its id across
// re-crawls even when its text changes.
func StableSectionID(canonicalURL string, chunkIndex int) string {
	sum := sha1.Sum([]byte(canonicalURL + ":" + strconv.Itoa(chunkIndex)))
	return "sec_" + hex.EncodeToString(sum[:])[:16]
}

// SectionVersionHash is the hash of the raw chunk text. It changes whenever
// the chunk text changes and pins evidence to the exact text it quoted.
func SectionVersionHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
