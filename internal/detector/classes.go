package detector

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ClassNameResolver maps between class names and model class ids.
type ClassNameResolver interface {
	ClassID(name string) (int, bool)
	ClassName(id int) (string, bool)
}

// Table is a static class-name table indexed by class id.
type Table []string

// ClassID looks up name exactly, then case-insensitively.
func (t Table) ClassID(name string) (int, bool) {
	for i, n := range t {
		if n == name {
			return i, true
		}
	}
	for i, n := range t {
		if strings.EqualFold(n, name) {
			return i, true
		}
	}
	return 0, false
}

// ClassName returns the label for id.
func (t Table) ClassName(id int) (string, bool) {
	if id < 0 || id >= len(t) {
		return "", false
	}
	return t[id], true
}

// LoadNames reads a newline separated names file, one class per line.
func LoadNames(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read class names: %w", err)
	}

	var t Table
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		t = append(t, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan class names: %w", err)
	}
	for len(t) > 0 && t[len(t)-1] == "" {
		t = t[:len(t)-1]
	}
	if len(t) == 0 {
		return nil, fmt.Errorf("class names file %s is empty", path)
	}
	return t, nil
}

// COCO is the 80-class table used by the YOLO family.
var COCO = Table{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// withBackground prefixes the table with the background class SSD models
// reserve as id 0.
func withBackground(t Table) Table {
	return append(Table{"background"}, t...)
}

// DefaultClass is requested when a caller names no classes.
const DefaultClass = "person"

// Resolve turns requested class references into an allow-list. Entries that
// parse as integers are taken as ids; anything else is looked up by name and
// dropped with a warning when unknown.
//
// With nothing requested the allow-list is the DefaultClass id if the
// resolver knows it. A nil result means no filtering, which is also the
// outcome when none of the requested entries resolve.
func Resolve(requested []string, r ClassNameResolver) []int {
	if len(requested) == 0 {
		if r == nil {
			return nil
		}
		if id, ok := r.ClassID(DefaultClass); ok {
			return []int{id}
		}
		return nil
	}

	var ids []int
	seen := make(map[int]bool)
	for _, c := range requested {
		c = strings.TrimSpace(c)
		id, err := strconv.Atoi(c)
		if err != nil {
			var ok bool
			if r != nil {
				id, ok = r.ClassID(c)
			}
			if !ok {
				log.Warn().Str("class", c).Msg("Unknown class name ignored")
				continue
			}
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// ClassList decodes a class selection given as a single value or an array
// mixing numeric ids and names, e.g. ["person", 14].
type ClassList []string

func (c *ClassList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}
	if len(data) > 0 && data[0] != '[' {
		data = append(append([]byte{'['}, data...), ']')
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode classes: %w", err)
	}

	out := make(ClassList, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err != nil {
			return fmt.Errorf("class %s is neither a name nor an id", item)
		}
		id, err := n.Int64()
		if err != nil {
			return fmt.Errorf("class id %s is not an integer", n)
		}
		out = append(out, strconv.FormatInt(id, 10))
	}
	*c = out
	return nil
}
