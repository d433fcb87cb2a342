// Package source loads the comments a batch renders.
package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/comment2video/internal/chunker"
)

// Comment is one rendered comment. Votes is kept as text ("1.2k").
type Comment struct {
	Author string `yaml:"author"`
	Votes  string `yaml:"votes"`
	Date   string `yaml:"date,omitempty"`
	Text   string `yaml:"comment"`
	Indent int    `yaml:"indent,omitempty"`
	Avatar string `yaml:"avatar,omitempty"`
}

// Paragraphs returns the non-empty paragraphs of the comment text.
func (c Comment) Paragraphs() []string { return SplitParagraphs(c.Text) }

// SplitParagraphs splits on runs of newlines, trims each paragraph and
// drops blank ones.
func SplitParagraphs(text string) []string { return chunker.SplitParagraphs(text) }

type Source interface {
	Count() int
	Comment(index int) (Comment, error)
	Close() error
}

type listSource struct {
	comments []Comment
}

func (s *listSource) Count() int { return len(s.comments) }

func (s *listSource) Comment(index int) (Comment, error) {
	if index < 0 || index >= len(s.comments) {
		return Comment{}, fmt.Errorf("comment %d out of range (have %d)", index, len(s.comments))
	}
	return s.comments[index], nil
}

func (s *listSource) Close() error { return nil }

// FromComments wraps an in-memory list.
func FromComments(comments []Comment) Source {
	return &listSource{comments: comments}
}

// Open loads path by extension: .csv, .yaml/.yml or anything else as plain
// text holding a single comment. Relative avatar paths are resolved against
// the file's directory.
func Open(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var comments []Comment
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		comments, err = LoadCSV(bytes.NewReader(data))
	case ".yaml", ".yml":
		comments, err = LoadYAML(bytes.NewReader(data))
	default:
		comments, err = LoadText(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range comments {
		if a := comments[i].Avatar; a != "" && !filepath.IsAbs(a) {
			comments[i].Avatar = filepath.Join(dir, a)
		}
	}
	return &listSource{comments: comments}, nil
}

// LoadCSV reads a comment export with a header row. The comment column is
// required; author, votes, indent, date and avatar are optional.
func LoadCSV(r io.Reader) ([]Comment, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty csv")
		}
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := col["comment"]; !ok {
		return nil, fmt.Errorf("csv header %v has no comment column", header)
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []Comment
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		c := Comment{
			Author: get(rec, "author"),
			Votes:  get(rec, "votes"),
			Date:   get(rec, "date"),
			Text:   get(rec, "comment"),
			Avatar: get(rec, "avatar"),
		}
		if v := get(rec, "indent"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid indent %q", line, v)
			}
			c.Indent = n
		}
		out = append(out, c)
	}
	return out, nil
}

// LoadYAML reads a list of comments.
func LoadYAML(r io.Reader) ([]Comment, error) {
	var out []Comment
	if err := yaml.NewDecoder(r).Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// LoadText reads the whole input as one anonymous comment.
func LoadText(r io.Reader) ([]Comment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return []Comment{{Text: string(data)}}, nil
}

// TopLevel keeps comments with indent at most maxIndent.
func TopLevel(comments []Comment, maxIndent int) []Comment {
	var out []Comment
	for _, c := range comments {
		if c.Indent <= maxIndent {
			out = append(out, c)
		}
	}
	return out
}
