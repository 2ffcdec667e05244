package questionbank

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/layer-3/keepsake/core"
	"github.com/layer-3/keepsake/ports"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTitle    = "Happy Birthday"
	DefaultBlessing = "祝你生日快樂，願這份小驚喜帶給你笑容。"
)

// File is the on-disk layout of a question bank
type File struct {
	Title     string         `yaml:"title" json:"title"`
	Blessing  string         `yaml:"blessing" json:"blessing"`
	Questions []FileQuestion `yaml:"questions" json:"questions"`
}

// FileQuestion is one question entry. Exactly one of Answers and
// AnswerHashRef must be set.
type FileQuestion struct {
	ID            int      `yaml:"id" json:"id"`
	Question      string   `yaml:"question" json:"question"`
	Hint          string   `yaml:"hint" json:"hint"`
	Photo         string   `yaml:"photo" json:"photo"`
	Answers       []string `yaml:"answers" json:"answers"`
	AnswerHashRef string   `yaml:"answer_hash_ref" json:"answer_hash_ref"`
}

// FileSource loads a question bank from a YAML or JSON file
type FileSource struct {
	path string
}

// NewFileSource creates a file backed question source
func NewFileSource(path string) ports.QuestionSource {
	return &FileSource{path: path}
}

// LoadBank reads, decodes and validates the file
func (s *FileSource) LoadBank(ctx context.Context) (core.Site, *core.Bank, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return core.Site{}, nil, fmt.Errorf("failed to read question bank: %w", err)
	}

	var f File
	if strings.EqualFold(filepath.Ext(s.path), ".json") {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return core.Site{}, nil, fmt.Errorf("failed to decode question bank %s: %w", s.path, err)
	}

	return Build(f)
}

// Build converts a decoded file into the site copy and a validated bank
func Build(f File) (core.Site, *core.Bank, error) {
	site := core.Site{Title: f.Title, Blessing: f.Blessing}
	if strings.TrimSpace(site.Title) == "" {
		site.Title = DefaultTitle
	}
	if strings.TrimSpace(site.Blessing) == "" {
		site.Blessing = DefaultBlessing
	}

	questions := make([]core.Question, 0, len(f.Questions))
	for _, fq := range f.Questions {
		answer, err := fq.answerSpec()
		if err != nil {
			return core.Site{}, nil, err
		}
		questions = append(questions, core.Question{
			ID:       fq.ID,
			Prompt:   fq.Question,
			Hint:     fq.Hint,
			MediaRef: fq.Photo,
			Answer:   answer,
		})
	}

	bank, err := core.NewBank(questions)
	if err != nil {
		return core.Site{}, nil, err
	}

	return site, bank, nil
}

func (fq FileQuestion) answerSpec() (core.AnswerSpec, error) {
	hasPlain := len(fq.Answers) > 0
	hasHash := strings.TrimSpace(fq.AnswerHashRef) != ""

	switch {
	case hasPlain && hasHash:
		return core.AnswerSpec{}, fmt.Errorf("%w: question %d sets both answers and answer_hash_ref", core.ErrInvalidBank, fq.ID)
	case hasPlain:
		return core.PlainAnswers(fq.Answers...), nil
	case hasHash:
		return core.HashedAnswer(strings.TrimSpace(fq.AnswerHashRef)), nil
	default:
		return core.AnswerSpec{}, fmt.Errorf("%w: question %d needs answers or answer_hash_ref", core.ErrInvalidBank, fq.ID)
	}
}
