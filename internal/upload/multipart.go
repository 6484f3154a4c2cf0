package upload

import (
	"bytes"
	"mime"
	"net/textproto"
	"strings"

	"socket-file-drop/internal/wire"
)

var crlf = []byte("\r\n")

// part is one boundary-delimited section of a multipart body.
type part struct {
	header  map[string]string
	content []byte
}

type scanState int

const (
	awaitHeaders scanState = iota
	awaitBlank
	captureContent
)

func decodeMultipart(body []byte, contentType string) (Item, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return Item{}, wire.Wrap(wire.KindMalformed, "content type", err)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return Item{}, wire.Errorf(wire.KindMalformed, "multipart body without boundary")
	}

	it := Item{Fields: map[string]string{}}
	segments := bytes.Split(body, []byte("--"+boundary))
	// segments[0] is the preamble.
	for _, seg := range segments[1:] {
		if bytes.HasPrefix(seg, []byte("--")) {
			break
		}
		p, ok := scanPart(seg)
		if !ok {
			continue
		}

		disposition, dparams, err := mime.ParseMediaType(p.header["Content-Disposition"])
		if err != nil || disposition != "form-data" {
			continue
		}
		field := dparams["name"]
		filename, isFile := dparams["filename"]
		switch {
		case isFile && field == FileField:
			it.Name = filename
			it.Content = p.content
			it.ContentType = p.header["Content-Type"]
		case !isFile && field != "":
			it.Fields[field] = string(p.content)
		}
	}
	return it, nil
}

// scanPart splits a segment into headers and content. It reports false for
// segments that are not well-formed parts.
func scanPart(seg []byte) (part, bool) {
	if !bytes.HasPrefix(seg, crlf) {
		return part{}, false
	}
	rest := seg[len(crlf):]
	p := part{header: map[string]string{}}

	state := awaitHeaders
	for state != captureContent {
		i := bytes.Index(rest, crlf)
		if i < 0 {
			return part{}, false
		}
		line := string(rest[:i])
		rest = rest[i+len(crlf):]

		if line == "" {
			if state == awaitHeaders {
				return part{}, false
			}
			state = captureContent
			continue
		}
		name, value, ok := cutHeader(line)
		if !ok {
			return part{}, false
		}
		p.header[name] = value
		state = awaitBlank
	}

	// The CRLF in front of the next delimiter belongs to the delimiter.
	p.content = bytes.TrimSuffix(rest, crlf)
	return p, true
}

func cutHeader(line string) (string, string, bool) {
	i := strings.Index(line, ": ")
	if i <= 0 {
		return "", "", false
	}
	return textproto.CanonicalMIMEHeaderKey(line[:i]), line[i+2:], true
}
