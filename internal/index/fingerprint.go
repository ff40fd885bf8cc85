// pattern: Functional Core

package index

import (
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// Fingerprint hashes the identity of every object in a listing. Two
// listings with the same keys, sizes, modification times and ETags have the
// same fingerprint regardless of order.
func Fingerprint(objs []Object) string {
	sorted := slices.Clone(objs)
	slices.SortFunc(sorted, func(a, b Object) int {
		return strings.Compare(a.Key, b.Key)
	})

	h := blake3.New()
	var buf []byte
	for _, obj := range sorted {
		buf = buf[:0]
		buf = append(buf, obj.Key...)
		buf = append(buf, 0)
		buf = strconv.AppendInt(buf, obj.Size, 10)
		buf = append(buf, 0)
		buf = strconv.AppendInt(buf, obj.ModTime.UnixNano(), 10)
		buf = append(buf, 0)
		buf = append(buf, obj.ETag...)
		buf = append(buf, '\n')
		_, _ = h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}
