package adapters

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"rsc.io/pdf"
)

const maxExtractedTextRunes = 200_000

// documentText renders a non-image upload for inlining into the prompt. PDFs
// are text-extracted when possible; anything else that is not valid UTF-8 is
// decoded byte for byte and reported as binary.
func documentText(file Upload) (text string, binary bool) {
	if file.MIMEType == "application/pdf" {
		if extracted, err := extractPDFText(file.Data); err == nil && strings.TrimSpace(extracted) != "" {
			return normalizeTextPayload(extracted), false
		}
		return binaryString(file.Data), true
	}
	if utf8.Valid(file.Data) {
		return normalizeTextPayload(string(file.Data)), false
	}
	return binaryString(file.Data), true
}

func documentPrompt(message string, file Upload) string {
	text, binary := documentText(file)
	if binary {
		return message + "\n\nFile content in binary format: " + text
	}
	return message + "\n\nFile content:\n" + text
}

func extractPDFText(data []byte) (text string, err error) {
	// rsc.io/pdf panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var textBuilder strings.Builder
	runeCount := 0
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		for _, item := range page.Content().Text {
			chunk := strings.TrimSpace(item.S)
			if chunk == "" {
				continue
			}
			if textBuilder.Len() > 0 {
				textBuilder.WriteByte('\n')
				runeCount++
			}
			textBuilder.WriteString(chunk)
			runeCount += utf8.RuneCountInString(chunk)
			if runeCount >= maxExtractedTextRunes {
				return trimToRunes(textBuilder.String(), maxExtractedTextRunes), nil
			}
		}
	}
	return textBuilder.String(), nil
}

// binaryString maps each byte to the code point of the same value.
func binaryString(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

func normalizeTextPayload(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
}

func trimToRunes(raw string, limit int) string {
	if utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	return string([]rune(raw)[:limit])
}
