package parser

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"docchat/internal/domain"
)

type parseFunc func(content []byte) ([]domain.Document, error)

// DocumentParser parses raw file bytes into documents, keyed by extension.
// PDF files yield one document per page with a 1-based page number; every
// other format yields a single document.
type DocumentParser struct {
	formats map[string]parseFunc
}

// New creates a parser supporting .txt, .pdf, .docx, .csv, .xlsx and .html.
func New() *DocumentParser {
	p := &DocumentParser{formats: make(map[string]parseFunc)}
	p.formats[".txt"] = p.parseTXT
	p.formats[".pdf"] = p.parsePDF
	p.formats[".docx"] = p.parseDOCX
	p.formats[".csv"] = p.parseCSV
	p.formats[".xlsx"] = p.parseXLSX
	p.formats[".html"] = p.parseHTML
	return p
}

// Supported reports whether the filename's extension has a parser.
func (p *DocumentParser) Supported(filename string) bool {
	_, ok := p.formats[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Parse dispatches on the filename's extension.
func (p *DocumentParser) Parse(content []byte, filename string) ([]domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	fn, ok := p.formats[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", ext)
	}
	docs, err := fn(content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}
	return docs, nil
}

func singleDocument(text string) []domain.Document {
	return []domain.Document{{Text: text, Metadata: map[string]any{}}}
}

func (p *DocumentParser) parseTXT(content []byte) ([]domain.Document, error) {
	return singleDocument(string(content)), nil
}

func (p *DocumentParser) parsePDF(content []byte) ([]domain.Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	var docs []domain.Document
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		docs = append(docs, domain.Document{Text: text, Metadata: map[string]any{"page": i}})
	}
	return docs, nil
}

// parseDOCX treats the file as a ZIP archive and extracts the paragraph
// text from word/document.xml.
func (p *DocumentParser) parseDOCX(content []byte) ([]domain.Document, error) {
	zipReader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open docx as zip: %w", err)
	}
	var documentXML *zip.File
	for _, file := range zipReader.File {
		if file.Name == "word/document.xml" {
			documentXML = file
			break
		}
	}
	if documentXML == nil {
		return nil, fmt.Errorf("word/document.xml not found in docx")
	}
	xmlFile, err := documentXML.Open()
	if err != nil {
		return nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer xmlFile.Close()
	xmlData, err := io.ReadAll(xmlFile)
	if err != nil {
		return nil, fmt.Errorf("read document.xml: %w", err)
	}
	text, err := extractDocumentXMLText(xmlData)
	if err != nil {
		return nil, err
	}
	return singleDocument(text), nil
}

func extractDocumentXMLText(xmlData []byte) (string, error) {
	type Text struct {
		Value string `xml:",chardata"`
	}
	type Run struct {
		Text []Text `xml:"t"`
	}
	type Paragraph struct {
		Runs []Run `xml:"r"`
	}
	type Body struct {
		Paragraphs []Paragraph `xml:"p"`
	}
	type Document struct {
		Body Body `xml:"body"`
	}

	var doc Document
	if err := xml.Unmarshal(xmlData, &doc); err != nil {
		return "", fmt.Errorf("parse document.xml: %w", err)
	}
	var text strings.Builder
	for _, para := range doc.Body.Paragraphs {
		for _, run := range para.Runs {
			for _, t := range run.Text {
				text.WriteString(t.Value)
			}
		}
		text.WriteString("\n")
	}
	return strings.TrimSpace(text.String()), nil
}

func (p *DocumentParser) parseCSV(content []byte) ([]domain.Document, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	var text strings.Builder
	for _, row := range records {
		text.WriteString(strings.Join(row, ", "))
		text.WriteString("\n")
	}
	return singleDocument(strings.TrimSpace(text.String())), nil
}

func (p *DocumentParser) parseXLSX(content []byte) ([]domain.Document, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	var text strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		text.WriteString(fmt.Sprintf("=== %s ===\n", sheet))
		for _, row := range rows {
			text.WriteString(strings.Join(row, ", "))
			text.WriteString("\n")
		}
		text.WriteString("\n")
	}
	return singleDocument(strings.TrimSpace(text.String())), nil
}

func (p *DocumentParser) parseHTML(content []byte) ([]domain.Document, error) {
	text, err := extractHTMLText(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	return singleDocument(text), nil
}

// extractHTMLText renders a page to plain text: scripts and styles are
// dropped, blank lines collapsed.
func extractHTMLText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style").Remove()
	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(lines, "\n"), nil
}
