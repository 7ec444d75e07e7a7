package cos

import (
	"strconv"
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

// AttribHash returns the xxhash64 of parts, each followed by a zero-byte
// separator, e.g. a stream's aggregation key (domain, msgKey, qos). The
// item stream engine's findStream does not use it: it keys its attribute
// table on the plain string from streamAttribKey. xxhash is the teacher's own choice for this kind of
// short-key hashing (see cmn/cos/uuid.go's GenUUID).
func AttribHash(parts ...string) uint64 {
	h := xxhash.New64()
	for _, p := range parts {
		h.WriteString(p)
		h.Write(sep)
	}
	return h.Sum64()
}

var sep = []byte{0}

var (
	sidOnce sync.Once
	sid     *shortid.Shortid
)

// TraceID returns a short correlation id from shortid, or a fixed xxhash
// based string if shortid cannot be set up or fails. No log call in this
// module stamps it into its lines.
func TraceID() string {
	sidOnce.Do(func() {
		s, err := shortid.New(1, shortid.DefaultABC, 1)
		if err != nil {
			sid = nil
			return
		}
		sid = s
	})
	if sid == nil {
		return strconv.FormatInt(int64(xxhash.Checksum64(sep)), 36)
	}
	id, err := sid.Generate()
	if err != nil {
		return strconv.FormatInt(int64(xxhash.Checksum64(sep)), 36)
	}
	return id
}
