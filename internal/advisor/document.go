package advisor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/spigell/programme-advisor/internal/ai"
	"github.com/spigell/programme-advisor/internal/utils"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	documentLabel = "CV/Resume:\n"
)

// InputKind tells the extractor how to read an input.
type InputKind string

const (
	KindDocument InputKind = "document"
	KindText     InputKind = "text"
)

// Input is one extraction request.
type Input struct {
	Kind InputKind
	// Data holds the raw document bytes for KindDocument.
	Data []byte
	// Text holds the pasted profile for KindText.
	Text string
	// Filename selects the rendering hint by extension.
	Filename string
	// CareerGoals are goals the candidate stated alongside the document.
	CareerGoals string
}

var textExtensions = map[string]bool{
	".txt":  true,
	".text": true,
	".csv":  true,
	".md":   true,
}

// documentParts renders the input as either inline document data or literal text.
func documentParts(in Input, maxChars int) ([]ai.Part, error) {
	if in.Kind == KindText {
		return textParts(in.Text, maxChars)
	}

	ext := strings.ToLower(filepath.Ext(in.Filename))
	switch {
	case ext == ".pdf":
		return []ai.Part{{Data: in.Data, MIMEType: mimePDF}}, nil
	case textExtensions[ext]:
		return textParts(string(in.Data), maxChars)
	case ext == ".docx":
		return docxParts(in.Data, maxChars)
	}

	detected := mimetype.Detect(in.Data)
	switch {
	case detected.Is(mimePDF):
		return []ai.Part{{Data: in.Data, MIMEType: mimePDF}}, nil
	case detected.Is(mimeDOCX):
		return docxParts(in.Data, maxChars)
	case strings.HasPrefix(detected.String(), "text/"):
		return textParts(string(in.Data), maxChars)
	}

	mime, _, _ := strings.Cut(detected.String(), ";")
	return []ai.Part{{Data: in.Data, MIMEType: strings.TrimSpace(mime)}}, nil
}

func textParts(text string, maxChars int) ([]ai.Part, error) {
	text = strings.TrimSpace(strings.ToValidUTF8(text, ""))
	if text == "" {
		return nil, errors.New("document contains no text")
	}
	return []ai.Part{ai.TextPart(documentLabel + utils.TruncateRunes(text, maxChars))}, nil
}

func docxParts(data []byte, maxChars int) ([]ai.Part, error) {
	text, err := docxText(data)
	if err != nil {
		return nil, err
	}
	return textParts(text, maxChars)
}

// docxText returns the paragraph text of a .docx document, one paragraph per line.
func docxText(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	var body *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.New("docx has no word/document.xml")
	}

	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	var (
		builder strings.Builder
		inText  bool
	)
	decoder := xml.NewDecoder(rc)
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				builder.WriteString("\t")
			case "br":
				builder.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				builder.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				builder.Write(t)
			}
		}
	}

	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", errors.New("docx contains no text")
	}
	return text, nil
}
