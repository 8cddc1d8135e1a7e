package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParentIDUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ParentID
	}{
		{"number zero", `{"parentId":0}`, RootParentID},
		{"string zero", `{"parentId":"0"}`, RootParentID},
		{"empty string", `{"parentId":""}`, RootParentID},
		{"null", `{"parentId":null}`, RootParentID},
		{"folder id", `{"parentId":"4f1c2a7e-2f1b-4a8e-9c3d-1b2a3c4d5e6f"}`, "4f1c2a7e-2f1b-4a8e-9c3d-1b2a3c4d5e6f"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var v struct {
				ParentID ParentID `json:"parentId"`
			}
			require.NoError(t, json.Unmarshal([]byte(tc.in), &v))
			assert.Equal(t, tc.want, v.ParentID)
		})
	}
}

func TestFileRecordJSONHidesLocalPath(t *testing.T) {
	rec := &FileRecord{ID: "f1", UserID: "u1", Name: "a.png", Type: FileTypeImage, ParentID: RootParentID, LocalPath: "/tmp/x"}

	out, err := json.Marshal(rec)
	require.NoError(t, err)

	assert.JSONEq(t, `{"id":"f1","userId":"u1","name":"a.png","type":"image","isPublic":false,"parentId":0}`, string(out))
}

func TestFileTypeValid(t *testing.T) {
	assert.True(t, FileTypeFolder.Valid())
	assert.True(t, FileTypeFile.Valid())
	assert.True(t, FileTypeImage.Valid())
	assert.False(t, FileType("video").Valid())
	assert.False(t, FileType("").Valid())
}
