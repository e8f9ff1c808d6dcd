package badger

import (
	"encoding/binary"

	"github.com/poiesic/shipdex/core"
)

// Key prefixes for different data types
const (
	taskRecordPrefix  = "tskrec"
	taskOrderPrefix   = "tskord"
	checkpointPrefix  = "wflchk"
	imageRecordPrefix = "imgrec"
	imageRegPrefix    = "imgreg"
	imageRepoPrefix   = "imgrepo"
	sbomRecordPrefix  = "sbmrec"
	vulnRecordPrefix  = "vulrec"
	docNodePrefix     = "dgnrec"
	entityPrefix      = "entrec"
	edgeOutPrefix     = "edgout"
	edgeInPrefix      = "edgin"
	vectorPrefix      = "vecrec"
	vectorDocPrefix   = "vecdoc"
	metadataPrefix    = "mdrec"
	textTermPrefix    = "ftxt"
	textDocPrefix     = "ftxd"
)

func appendID(buf []byte, id core.ID) []byte {
	// BigEndian so lexicographic sort matches numeric order
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return append(buf, b[:]...)
}

func readID(b []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(b))
}

// makeTaskKey generates a key for a task record by id.
func makeTaskKey(taskId string) []byte {
	return []byte(taskRecordPrefix + ":" + taskId)
}

// makeTaskOrderKey generates a composite key for the insertion-order
// index. Format: prefix:createdAtMicros:taskId
func makeTaskOrderKey(createdAtMicros int64, taskId string) []byte {
	buf := make([]byte, 0, len(taskOrderPrefix)+1+8+1+len(taskId))
	buf = append(buf, taskOrderPrefix...)
	buf = append(buf, ':')
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(createdAtMicros))
	buf = append(buf, b[:]...)
	buf = append(buf, ':')
	buf = append(buf, taskId...)
	return buf
}

// makeCheckpointKey generates a key for a workflow checkpoint.
func makeCheckpointKey(taskId string) []byte {
	return []byte(checkpointPrefix + ":" + taskId)
}

func makeNodeKey(prefix string, key core.ID) []byte {
	buf := make([]byte, 0, len(prefix)+1+8)
	buf = append(buf, prefix...)
	buf = append(buf, ':')
	return appendID(buf, key)
}

// makeImageIndexKey generates a composite key for the registry and
// repository secondary indexes. Format: prefix:value\x00:key
func makeImageIndexKey(prefix, value string, key core.ID) []byte {
	buf := make([]byte, 0, len(prefix)+1+len(value)+2+8)
	buf = append(buf, prefix...)
	buf = append(buf, ':')
	buf = append(buf, value...)
	buf = append(buf, 0, ':')
	return appendID(buf, key)
}

func makeImageIndexPrefix(prefix, value string) []byte {
	buf := make([]byte, 0, len(prefix)+1+len(value)+2)
	buf = append(buf, prefix...)
	buf = append(buf, ':')
	buf = append(buf, value...)
	buf = append(buf, 0, ':')
	return buf
}

// makeEdgeKey generates a composite key for a directed edge.
// Format: prefix:node8:rel:node8
func makeEdgeKey(prefix string, a core.ID, rel string, b core.ID) []byte {
	buf := make([]byte, 0, len(prefix)+1+8+1+len(rel)+1+8)
	buf = append(buf, prefix...)
	buf = append(buf, ':')
	buf = appendID(buf, a)
	buf = append(buf, ':')
	buf = append(buf, rel...)
	buf = append(buf, ':')
	return appendID(buf, b)
}

// makeEdgePrefix generates a partial edge key for prefix scans by node,
// or by node and relationship when rel is non-empty.
func makeEdgePrefix(prefix string, a core.ID, rel string) []byte {
	buf := make([]byte, 0, len(prefix)+1+8+1+len(rel)+1)
	buf = append(buf, prefix...)
	buf = append(buf, ':')
	buf = appendID(buf, a)
	buf = append(buf, ':')
	if rel != "" {
		buf = append(buf, rel...)
		buf = append(buf, ':')
	}
	return buf
}

// makeVectorKey generates a composite key for a chunk vector.
// Format: prefix:docKey8:chunkIndex4
func makeVectorKey(docKey core.ID, chunkIndex int) []byte {
	buf := make([]byte, 0, len(vectorPrefix)+1+8+1+4)
	buf = append(buf, vectorPrefix...)
	buf = append(buf, ':')
	buf = appendID(buf, docKey)
	buf = append(buf, ':')
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(chunkIndex))
	return append(buf, b[:]...)
}

func makeVectorPrefix(docKey core.ID) []byte {
	buf := make([]byte, 0, len(vectorPrefix)+1+8+1)
	buf = append(buf, vectorPrefix...)
	buf = append(buf, ':')
	buf = appendID(buf, docKey)
	return append(buf, ':')
}

// makeVectorDocKey generates the key of the doc-key to document-id
// mapping record used to report search hits by document id.
func makeVectorDocKey(docKey core.ID) []byte {
	buf := make([]byte, 0, len(vectorDocPrefix)+1+8)
	buf = append(buf, vectorDocPrefix...)
	buf = append(buf, ':')
	return appendID(buf, docKey)
}

func vectorKeyIndex(key []byte) int {
	return int(binary.BigEndian.Uint32(key[len(key)-4:]))
}

// makeMetadataKey generates a key for a document metadata record.
func makeMetadataKey(documentId string) []byte {
	return []byte(metadataPrefix + ":" + documentId)
}

// makeTermKey generates a posting key. Format: prefix:term:documentId
func makeTermKey(term, documentId string) []byte {
	return []byte(textTermPrefix + ":" + term + ":" + documentId)
}

func makeTermPrefix(term string) []byte {
	return []byte(textTermPrefix + ":" + term + ":")
}

// makeTextDocKey generates the reverse posting key used for
// replace-on-reingest cleanup. Format: prefix:documentId:term
func makeTextDocKey(documentId, term string) []byte {
	return []byte(textDocPrefix + ":" + documentId + ":" + term)
}

func makeTextDocPrefix(documentId string) []byte {
	return []byte(textDocPrefix + ":" + documentId + ":")
}
