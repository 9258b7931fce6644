/* Copyright 2025 Readsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package library

import (
	"strconv"
	"strings"
)

// segment is one step of an xpointer path such as "p[3]" or "text().45"
type segment struct {
	name   string
	index  int
	offset int
	isText bool
}

func parseSegment(s string) (segment, bool) {
	if strings.HasPrefix(s, "text()") {
		rest := strings.TrimPrefix(s, "text()")
		seg := segment{name: "text()", index: 1, isText: true}

		if strings.HasPrefix(rest, "[") {
			end := strings.Index(rest, "]")
			if end < 0 {
				return seg, false
			}
			idx, err := strconv.Atoi(rest[1:end])
			if err != nil {
				return seg, false
			}
			seg.index = idx
			rest = rest[end+1:]
		}

		if strings.HasPrefix(rest, ".") {
			off, err := strconv.Atoi(rest[1:])
			if err != nil {
				return seg, false
			}
			seg.offset = off
		} else if rest != "" {
			return seg, false
		}

		return seg, true
	}

	seg := segment{name: s, index: 1}
	if open := strings.Index(s, "["); open >= 0 {
		if !strings.HasSuffix(s, "]") {
			return seg, false
		}
		idx, err := strconv.Atoi(s[open+1 : len(s)-1])
		if err != nil {
			return seg, false
		}
		seg.name = s[:open]
		seg.index = idx
	}

	if seg.name == "" {
		return seg, false
	}

	return seg, true
}

func parsePointer(xp string) ([]segment, bool) {
	var ret []segment
	for _, part := range strings.Split(xp, "/") {
		if part == "" {
			continue
		}
		seg, ok := parseSegment(part)
		if !ok {
			return nil, false
		}
		ret = append(ret, seg)
	}

	return ret, len(ret) > 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// ComparePointers orders two xpointers in document order. It returns -1, 0 or 1 and
// true when the order is defined. The order is undefined when either pointer cannot be
// parsed or when the paths diverge at differently named siblings, whose relative order
// is only known to the document itself.
func ComparePointers(a, b string) (int, bool) {
	pa, ok := parsePointer(a)
	if !ok {
		return 0, false
	}
	pb, ok := parsePointer(b)
	if !ok {
		return 0, false
	}

	for i := 0; i < len(pa) && i < len(pb); i++ {
		sa, sb := pa[i], pb[i]
		if sa.name != sb.name {
			return 0, false
		}
		if sa.index != sb.index {
			return sign(sa.index - sb.index), true
		}
		if sa.isText && sa.offset != sb.offset {
			return sign(sa.offset - sb.offset), true
		}
	}

	// one path is an ancestor of the other and starts before it
	return sign(len(pa) - len(pb)), true
}

// TruncatePointer removes the trailing segment of an xpointer. It returns false when
// nothing is left to remove.
func TruncatePointer(xp string) (string, bool) {
	xp = strings.TrimRight(xp, "/")
	i := strings.LastIndex(xp, "/")
	if i <= 0 {
		return "", false
	}

	return xp[:i], true
}

// ComparePointers orders two xpointers of the library's documents
func (l *Library) ComparePointers(a, b string) (int, bool) {
	return ComparePointers(a, b)
}
