package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RootParentID marks a file that lives at the top of a user's tree.
const RootParentID = "0"

type FileType string

const (
	FileTypeFolder FileType = "folder"
	FileTypeFile   FileType = "file"
	FileTypeImage  FileType = "image"
)

// Valid reports whether t is one of the accepted upload types.
func (t FileType) Valid() bool {
	switch t {
	case FileTypeFolder, FileTypeFile, FileTypeImage:
		return true
	}
	return false
}

type FileRecord struct {
	ID        string   `json:"id"`
	UserID    string   `json:"userId"`
	Name      string   `json:"name"`
	Type      FileType `json:"type"`
	IsPublic  bool     `json:"isPublic"`
	ParentID  ParentID `json:"parentId"`
	LocalPath string   `json:"-"`
}

// ParentID is a folder reference. Clients send it either as the number 0
// or as a folder id string, so it accepts both on decode.
type ParentID string

func (p ParentID) IsRoot() bool {
	return p == "" || p == RootParentID
}

// String returns the normalized id, "0" for root.
func (p ParentID) String() string {
	if p.IsRoot() {
		return RootParentID
	}
	return string(p)
}

func (p ParentID) MarshalJSON() ([]byte, error) {
	if p.IsRoot() {
		return []byte("0"), nil
	}
	return json.Marshal(string(p))
}

func (p *ParentID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*p = RootParentID
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = ParentID(strings.TrimSpace(s))
		if p.IsRoot() {
			*p = RootParentID
		}
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("parentId: %w", err)
	}
	*p = ParentID(strconv.FormatInt(n, 10))
	return nil
}
