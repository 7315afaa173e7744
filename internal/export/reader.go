package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
)

// PreambleLines is the number of report-header lines preceding the data.
const PreambleLines = 2

// DefaultEncodings is the list of encodings exports may use: UTF-8, then the
// two Central European code pages the portal has used.
var DefaultEncodings = []string{"utf-8", "windows-1250", "iso-8859-2"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader locates a chat's export and turns it into raw CSV rows.
type Reader struct {
	files     *Files
	encodings []string
	detector  *chardet.Detector
	log       *zap.Logger
}

// NewReader returns a Reader trying encodings in order, with the one the
// content looks most like promoted to the front.
func NewReader(files *Files, encodings []string, log *zap.Logger) *Reader {
	if len(encodings) == 0 {
		encodings = DefaultEncodings
	}
	return &Reader{
		files:     files,
		encodings: encodings,
		detector:  chardet.NewTextDetector(),
		log:       log,
	}
}

// Rows returns the data rows of the chat's export, preamble removed.
// ok is false when there is no file or nothing in it could be read;
// neither case is an error for the caller.
func (r *Reader) Rows(chatID int64) (rows [][]string, ok bool) {
	raw, err := r.files.Read(chatID)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.log.Info("schedule file not found", zap.Int64("chatID", chatID))
		} else {
			r.log.Error("read schedule file failed", zap.Int64("chatID", chatID), zap.Error(err))
		}
		return nil, false
	}
	rows, enc, ok := r.Decode(raw)
	if !ok {
		r.log.Error("schedule file not decodable", zap.Int64("chatID", chatID), zap.Int("bytes", len(raw)))
		return nil, false
	}
	r.log.Debug("schedule file decoded",
		zap.Int64("chatID", chatID), zap.String("encoding", enc), zap.Int("rows", len(rows)))
	return rows, true
}

// Decode tries each candidate encoding and returns the rows of the one that
// yields a readable semicolon-separated table with the fewest implausible
// characters. Single-byte code pages decode any input, so a clean decode
// (no stray symbols or control characters) wins outright and ties keep the
// candidate order.
func (r *Reader) Decode(raw []byte) (rows [][]string, encoding string, ok bool) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, "", false
	}
	best := -1
	for _, name := range r.candidates(raw) {
		text, err := decodeAs(raw, name)
		if err != nil {
			r.log.Debug("decode failed", zap.String("encoding", name), zap.Error(err))
			continue
		}
		table, err := splitTable(text)
		if err != nil {
			r.log.Debug("table parse failed", zap.String("encoding", name), zap.Error(err))
			continue
		}
		score := implausible(text)
		if best < 0 || score < best {
			rows, encoding, best = table, name, score
		}
		if score == 0 {
			break
		}
	}
	return rows, encoding, best >= 0
}

// implausible counts decoded runes that do not belong in schedule text:
// C1 control characters, replacement characters and non-ASCII symbols.
// Reading iso-8859-2 as windows-1250 turns "ą" into "±", and the reverse
// turns "ź" into a control character, so the right code page scores lowest.
func implausible(text string) int {
	n := 0
	for _, c := range text {
		switch {
		case c < utf8.RuneSelf:
		case unicode.IsLetter(c), unicode.IsMark(c), unicode.IsSpace(c):
		case typographic[c]:
		default:
			n++
		}
	}
	return n
}

// typographic holds punctuation that legitimately shows up in exports.
var typographic = map[rune]bool{
	'–': true, '—': true, '‘': true, '’': true, '‚': true,
	'“': true, '”': true, '„': true, '…': true, '«': true,
	'»': true, '°': true,
}

// candidates lists the configured encodings, without duplicates, moving the
// most likely detected one to the front. Detected charsets outside the
// configured list are ignored: single-byte guesses such as windows-1252 decode
// anything, so they would shadow the configured code pages.
func (r *Reader) candidates(raw []byte) []string {
	seen := make(map[string]bool)
	var configured []string
	for _, name := range r.encodings {
		name = canonicalName(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		configured = append(configured, name)
	}

	results, err := r.detector.DetectAll(raw)
	if err != nil {
		return configured
	}
	for _, res := range results {
		name := canonicalName(res.Charset)
		if !seen[name] {
			continue
		}
		out := []string{name}
		for _, c := range configured {
			if c != name {
				out = append(out, c)
			}
		}
		return out
	}
	return configured
}

// canonicalName maps an encoding label to its WHATWG name, so aliases such as
// "UTF8" and "utf-8" compare equal. Unknown labels are kept lowercased and
// fail later in decodeAs.
func canonicalName(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return ""
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return label
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		return label
	}
	return name
}

func decodeAs(raw []byte, name string) (string, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", err
	}
	if canonical, _ := htmlindex.Name(enc); canonical == "utf-8" {
		if !utf8.Valid(raw) {
			return "", errors.New("invalid utf-8")
		}
		return string(raw), nil
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// splitTable drops the preamble and reads the rest as semicolon CSV with a
// variable number of fields per row.
func splitTable(text string) ([][]string, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.SplitN(text, "\n", PreambleLines+1)
	if len(parts) <= PreambleLines {
		return nil, errors.New("no data after preamble")
	}

	cr := csv.NewReader(strings.NewReader(parts[PreambleLines]))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("no rows")
	}
	return rows, nil
}
