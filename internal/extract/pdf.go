package extract

import (
	"bytes"
	"compress/zlib"
	"encoding/xml"
	"io"
)

// maxInflatedStream bounds a single decompressed PDF stream.
const maxInflatedStream = 32 << 20

var (
	streamKeyword    = []byte("stream")
	endstreamKeyword = []byte("endstream")
	rootMarkers      = [][]byte{[]byte(ciiRootTag), []byte(zugferd1RootTag)}
)

// findEmbeddedXML scans PDF object streams for an attached CII or ZUGFeRD 1.0
// document.
// Flate-compressed streams are inflated; other streams are inspected as is.
func findEmbeddedXML(pdf []byte) ([]byte, bool) {
	rest := pdf
	for {
		i := bytes.Index(rest, streamKeyword)
		if i < 0 {
			return nil, false
		}
		if i >= 3 && bytes.Equal(rest[i-3:i], []byte("end")) {
			rest = rest[i+len(streamKeyword):]
			continue
		}
		start := i + len(streamKeyword)
		if start < len(rest) && rest[start] == '\r' {
			start++
		}
		if start < len(rest) && rest[start] == '\n' {
			start++
		}
		end := bytes.Index(rest[start:], endstreamKeyword)
		if end < 0 {
			return nil, false
		}
		data := rest[start : start+end]
		if x, ok := xmlPayload(inflate(data)); ok {
			return x, true
		}
		rest = rest[start+end+len(endstreamKeyword):]
	}
}

// xmlPayload returns data from its XML declaration (or root element) onwards
// when its root element is CII or ZUGFeRD 1.0. XMP metadata mentions the same
// names in namespace URIs, so the root itself is checked.
func xmlPayload(data []byte) ([]byte, bool) {
	idx := -1
	for _, m := range rootMarkers {
		if i := bytes.Index(data, m); i >= 0 && (idx < 0 || i < idx) {
			idx = i
		}
	}
	if idx < 0 {
		return nil, false
	}
	var payload []byte
	if decl := bytes.Index(data, []byte("<?xml")); decl >= 0 && decl < idx {
		payload = data[decl:]
	} else if lt := bytes.LastIndexByte(data[:idx], '<'); lt >= 0 {
		payload = data[lt:]
	} else {
		return nil, false
	}
	return payload, hasInvoiceRoot(payload)
}

func hasInvoiceRoot(data []byte) bool {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }
	for {
		tok, err := dec.RawToken()
		if err != nil {
			return false
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local == ciiRootTag || start.Name.Local == zugferd1RootTag
		}
	}
}

func inflate(data []byte) []byte {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return data
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxInflatedStream))
	if err != nil && len(out) == 0 {
		return data
	}
	return out
}
