// Package contacts syncs sender display names from an external contact
// store and watches it for changes.
package contacts

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Contact is a parsed contact: a display name and its raw phone numbers.
type Contact struct {
	FullName string
	Phones   []string
}

// ParseVCardFile reads a .vcf file and returns parsed contacts.
// Handles vCard 2.1 and 3.0 formats.
func ParseVCardFile(path string) ([]Contact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var contacts []Contact
	var current *Contact

	scanner := bufio.NewScanner(f)
	// Increase buffer for long lines (e.g., base64-encoded photos).
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "BEGIN:VCARD":
			current = &Contact{}

		case line == "END:VCARD":
			if current != nil && current.FullName != "" && len(current.Phones) > 0 {
				contacts = append(contacts, *current)
			}
			current = nil

		case current == nil:
			continue

		case strings.HasPrefix(line, "FN:") || strings.HasPrefix(line, "FN;"):
			// FN (formatted name) is the display name.
			if name := extractVCardValue(line); name != "" {
				current.FullName = name
			}

		case strings.HasPrefix(line, "TEL"):
			// TEL;CELL:+1555... or TEL;TYPE=CELL:+1555... or TEL:+1555...
			if raw := extractVCardValue(line); raw != "" {
				current.Phones = append(current.Phones, raw)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan vcard: %w", err)
	}

	return contacts, nil
}

// extractVCardValue extracts the value part from a vCard line.
// Handles both "KEY:value" and "KEY;params:value" formats.
func extractVCardValue(line string) string {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(line[idx+1:])
}
