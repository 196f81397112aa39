package extract

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/shopspring/decimal"
)

var (
	moneyPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	commaDecimal = regexp.MustCompile(`^-?\d+,\d{1,2}$`)
	datePrefix   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	clockPattern = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)
)

// scanSynonyms maps field names some services use onto ours.
var scanSynonyms = map[string]string{
	"grossTotal":   "total",
	"netTotal":     "subtotal",
	"taxTotal":     "tax",
	"currencyCode": "currency",
	"issueDate":    "date",
	"invoiceId":    "documentId",
	"vendor":       "merchant",
	"sender":       "merchant",
	"recipient":    "customer",
}

// sanitizeScanResponse normalizes a scan answer so that damaged optional
// fields are dropped instead of failing the whole document:
//   - renames known synonyms
//   - coerces numeric money to strings and drops unparseable money
//   - drops null/blank values and unknown keys
//   - trims party fields and drops parties without a name
func sanitizeScanResponse(raw []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	for from, to := range scanSynonyms {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	for _, k := range moneyKeys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			m[k] = decimal.NewFromFloat(t).String()
		case string:
			s := strings.TrimSpace(t)
			if commaDecimal.MatchString(s) {
				s = strings.Replace(s, ",", ".", 1)
			}
			if moneyPattern.MatchString(s) {
				m[k] = s
			} else {
				delete(m, k)
				dropped = append(dropped, k+"(invalid)")
			}
		default:
			delete(m, k)
			dropped = append(dropped, k+"(type)")
		}
	}

	if v, ok := m["currency"].(string); ok {
		c := strings.ToUpper(strings.TrimSpace(v))
		if common.CurrencyCode("currency", c) == nil {
			m["currency"] = c
		} else {
			delete(m, "currency")
			dropped = append(dropped, "currency(invalid)")
		}
	}

	for _, k := range []string{"merchant", "customer"} {
		if _, ok := m[k]; !ok {
			continue
		}
		p, ok := m[k].(map[string]any)
		if !ok {
			delete(m, k)
			dropped = append(dropped, k+"(type)")
			continue
		}
		dropped = append(dropped, sanitizeStrings(p, partyKeys, k+".")...)
		if _, ok := p["name"]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(no name)")
		}
	}

	allowed := map[string]struct{}{
		"merchant": {}, "customer": {}, "confidence": {},
	}
	for _, k := range moneyKeys {
		allowed[k] = struct{}{}
	}
	for _, k := range []string{"documentId", "orderReference", "currency", "date", "time", "dueDate"} {
		allowed[k] = struct{}{}
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}
	dropped = append(dropped, sanitizeStrings(m, []string{"documentId", "orderReference", "date", "time", "dueDate"}, "")...)
	for _, k := range []string{"date", "dueDate"} {
		if v, ok := m[k].(string); ok && !datePrefix.MatchString(v) {
			delete(m, k)
			dropped = append(dropped, k+"(invalid)")
		}
	}
	if v, ok := m["time"].(string); ok && !clockPattern.MatchString(v) {
		delete(m, "time")
		dropped = append(dropped, "time(invalid)")
	}
	if v, ok := m["confidence"]; ok {
		if f, isNum := v.(float64); !isNum || f < 0 || f > 1 {
			delete(m, "confidence")
			dropped = append(dropped, "confidence(invalid)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, dropped, nil
}

// sanitizeStrings trims the listed keys of m, dropping blanks, nulls, non-strings
// and any key not listed when the map is a nested object.
func sanitizeStrings(m map[string]any, keys []string, prefix string) []string {
	var dropped []string
	listed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		listed[k] = struct{}{}
		v, ok := m[k]
		if !ok {
			continue
		}
		s, isStr := v.(string)
		if !isStr || strings.TrimSpace(s) == "" {
			delete(m, k)
			dropped = append(dropped, prefix+k+"(empty)")
			continue
		}
		m[k] = strings.TrimSpace(s)
	}
	if prefix != "" {
		for k := range maps.Clone(m) {
			if _, ok := listed[k]; !ok {
				delete(m, k)
				dropped = append(dropped, prefix+k+"(unknown)")
			}
		}
	}
	return dropped
}
