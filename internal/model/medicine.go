package model

import (
	"errors"
	"strings"
)

type Medicine struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Time  string `json:"time"`
	Taken bool   `json:"taken"`
	Daily bool   `json:"daily"`
}

func (m Medicine) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return errors.New("model: medicine id is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("model: medicine name is required")
	}
	if _, err := ParseTimeOfDay(m.Time); err != nil {
		return err
	}
	return nil
}

func (m Medicine) Tag() string {
	return Tag(m.ID)
}
