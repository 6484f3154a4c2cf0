// Package upload turns a request body into the item to be stored.
//
// Two body shapes are understood: multipart/form-data, where the part named
// "file" carries the payload and plain fields (notably update_list) ride
// along, and anything else, which is stored whole under a fresh UUID.
package upload

import (
	"strings"

	"github.com/google/uuid"

	"socket-file-drop/internal/wire"
)

const (
	// FileField is the form field carrying the uploaded file.
	FileField = "file"
	// UpdateListField holds the comma-separated names a PUT overwrites.
	UpdateListField = "update_list"
	// DefaultContentType is used when none was declared.
	DefaultContentType = "text/plain"
)

// Item is a decoded request body destined for storage.
type Item struct {
	Name        string
	Content     []byte
	ContentType string
	UpdateList  []string
	// Fields holds plain multipart fields by name, update_list included.
	Fields map[string]string
}

// Size is the content length in bytes.
func (it Item) Size() int { return len(it.Content) }

// newName generates the name for bodies that do not carry one.
var newName = func() string { return uuid.NewString() }

// Decode interprets body according to the declared content type.
func Decode(body []byte, contentType string) (Item, error) {
	var (
		it  Item
		err error
	)
	if strings.HasPrefix(contentType, "multipart/form-data") {
		it, err = decodeMultipart(body, contentType)
		if err != nil {
			return Item{}, err
		}
	} else {
		it = Item{
			Name:        newName(),
			Content:     body,
			ContentType: contentType,
			Fields:      map[string]string{},
		}
	}

	if it.ContentType == "" {
		it.ContentType = DefaultContentType
	}
	it.UpdateList = splitList(it.Fields[UpdateListField])

	if it.Name == "" || it.Content == nil {
		return Item{}, wire.Errorf(wire.KindMalformed, "body carries no file")
	}
	return it, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
