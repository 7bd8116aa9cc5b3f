package medicines

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/sandeepkv93/medremind/internal/model"
)

var ErrNotFound = errors.New("medicines: not found")

const dayLayout = "2006-01-02"

type document struct {
	Medicines []model.Medicine `json:"medicines"`
	LastReset string           `json:"lastReset,omitempty"`
}

// Book is the user's medicine list, persisted as one JSON document.
type Book struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	now  func() time.Time
}

func NewBook(fs afero.Fs, path string) *Book {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Book{fs: fs, path: path, now: time.Now}
}

func (b *Book) Path() string { return b.path }

func (b *Book) List() ([]model.Medicine, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, err := b.load()
	if err != nil {
		return nil, err
	}
	return doc.Medicines, nil
}

func (b *Book) Get(id string) (model.Medicine, error) {
	meds, err := b.List()
	if err != nil {
		return model.Medicine{}, err
	}
	for _, m := range meds {
		if m.ID == id {
			return m, nil
		}
	}
	return model.Medicine{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (b *Book) Add(name, clock string, daily bool) (model.Medicine, error) {
	tod, err := model.ParseTimeOfDay(clock)
	if err != nil {
		return model.Medicine{}, err
	}
	m := model.Medicine{
		ID:    uuid.NewString(),
		Name:  strings.TrimSpace(name),
		Time:  tod.String(),
		Daily: daily,
	}
	if err := m.Validate(); err != nil {
		return model.Medicine{}, err
	}
	err = b.update(func(doc *document) error {
		doc.Medicines = append(doc.Medicines, m)
		return nil
	})
	return m, err
}

// MarkTaken is idempotent.
func (b *Book) MarkTaken(id string) (model.Medicine, error) {
	var out model.Medicine
	err := b.update(func(doc *document) error {
		for i := range doc.Medicines {
			if doc.Medicines[i].ID == id {
				doc.Medicines[i].Taken = true
				out = doc.Medicines[i]
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	})
	return out, err
}

func (b *Book) Remove(id string) error {
	return b.update(func(doc *document) error {
		for i := range doc.Medicines {
			if doc.Medicines[i].ID == id {
				doc.Medicines = append(doc.Medicines[:i], doc.Medicines[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	})
}

// ResetIfNewDay clears every taken flag the first time it runs on a new
// calendar day and reports whether it did.
func (b *Book) ResetIfNewDay(now time.Time) (bool, error) {
	today := now.Format(dayLayout)
	reset := false
	err := b.update(func(doc *document) error {
		if doc.LastReset == today {
			return errUnchanged
		}
		for i := range doc.Medicines {
			doc.Medicines[i].Taken = false
		}
		doc.LastReset = today
		reset = true
		return nil
	})
	return reset, err
}

var errUnchanged = errors.New("medicines: unchanged")

func (b *Book) update(fn func(doc *document) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, err := b.load()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	return b.save(doc)
}

func (b *Book) load() (document, error) {
	raw, err := afero.ReadFile(b.fs, b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return document{Medicines: []model.Medicine{}}, nil
		}
		return document{}, fmt.Errorf("read medicines: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return document{Medicines: []model.Medicine{}}, nil
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return document{}, fmt.Errorf("decode medicines: %w", err)
	}
	if doc.Medicines == nil {
		doc.Medicines = []model.Medicine{}
	}
	return doc, nil
}

func (b *Book) save(doc document) error {
	dir := filepath.Dir(b.path)
	if dir != "." && dir != "" {
		if err := b.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := b.path + ".tmp"
	if err := afero.WriteFile(b.fs, tmp, append(payload, '\n'), 0o644); err != nil {
		return err
	}
	return b.fs.Rename(tmp, b.path)
}
