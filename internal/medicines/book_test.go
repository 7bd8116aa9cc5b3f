package medicines

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/medremind/internal/model"
)

func newBook() (*Book, afero.Fs) {
	fs := afero.NewMemMapFs()
	return NewBook(fs, "/data/medicines.json"), fs
}

func TestBookAddListRemove(t *testing.T) {
	book, fs := newBook()

	empty, err := book.List()
	require.NoError(t, err)
	assert.Empty(t, empty)

	m, err := book.Add("  Aspirin ", "8:00", true)
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "Aspirin", m.Name)
	assert.Equal(t, "08:00", m.Time)

	_, err = book.Add("Vitamin D", "21:30", false)
	require.NoError(t, err)

	meds, err := book.List()
	require.NoError(t, err)
	require.Len(t, meds, 2)
	assert.Equal(t, "Aspirin", meds[0].Name)

	exists, err := afero.Exists(fs, "/data/medicines.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists, "temp file renamed into place")

	require.NoError(t, book.Remove(m.ID))
	assert.True(t, errors.Is(book.Remove(m.ID), ErrNotFound))
	meds, err = book.List()
	require.NoError(t, err)
	assert.Len(t, meds, 1)
}

func TestBookAddRejectsBadInput(t *testing.T) {
	book, _ := newBook()
	_, err := book.Add("Aspirin", "25:00", false)
	assert.ErrorIs(t, err, model.ErrInvalidTime)
	_, err = book.Add(" ", "08:00", false)
	assert.Error(t, err)
}

func TestBookMarkTakenIsIdempotent(t *testing.T) {
	book, _ := newBook()
	m, err := book.Add("Aspirin", "08:00", false)
	require.NoError(t, err)

	taken, err := book.MarkTaken(m.ID)
	require.NoError(t, err)
	assert.True(t, taken.Taken)

	again, err := book.MarkTaken(m.ID)
	require.NoError(t, err)
	assert.Equal(t, taken, again)

	_, err = book.MarkTaken("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := book.Get(m.ID)
	require.NoError(t, err)
	assert.True(t, got.Taken)
}

func TestBookResetIfNewDay(t *testing.T) {
	book, _ := newBook()
	m, err := book.Add("Aspirin", "08:00", true)
	require.NoError(t, err)
	_, err = book.MarkTaken(m.ID)
	require.NoError(t, err)

	day1 := time.Date(2026, 3, 10, 0, 0, 5, 0, time.UTC)
	reset, err := book.ResetIfNewDay(day1)
	require.NoError(t, err)
	assert.True(t, reset)
	got, _ := book.Get(m.ID)
	assert.False(t, got.Taken)

	_, err = book.MarkTaken(m.ID)
	require.NoError(t, err)
	reset, err = book.ResetIfNewDay(day1.Add(12 * time.Hour))
	require.NoError(t, err)
	assert.False(t, reset)
	got, _ = book.Get(m.ID)
	assert.True(t, got.Taken, "same-day reset keeps taken flags")

	reset, err = book.ResetIfNewDay(day1.Add(24 * time.Hour))
	require.NoError(t, err)
	assert.True(t, reset)
}

func TestBookCorruptFile(t *testing.T) {
	book, fs := newBook()
	require.NoError(t, afero.WriteFile(fs, "/data/medicines.json", []byte("{not json"), 0o644))
	_, err := book.List()
	assert.Error(t, err)
}
