// Package lexical implements the Lexical Index (spec §4.H): per-token
// postings over the concatenation of path, signature, and content, with
// BM25 scoring (k1=1.2, b=0.75). Postings live in the KV Environment's
// "postings" bucket (internal/kvstore), keyed by token, so file-level
// re-indexing can remove and insert chunk ids within the same write
// transaction as payload updates.
//
// IndexChunk writes two parallel tracks into the same bucket: the
// case-folded BM25 postings Search ranks over, and a second,
// case-preserving track keyed under a 0x01 prefix (so it never collides
// with a lowercase token) that FindExact reads — spec §4.L requires
// find_references to be a case-sensitive identifier-exact lookup, so
// "Handle" and "handle" must resolve to disjoint postings even though
// Search treats them as the same BM25 term.
//
// Grounded on the teacher's vector_ops.go searchText/sanitizeFTSQuery/
// collectTextResults, generalized from SQLite FTS5's bm25() builtin to
// an explicit Go implementation over posting entries (DESIGN.md).
package lexical

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	bolt "go.etcd.io/bbolt"

	"github.com/flupkede/codesearch/internal/kvstore"
)

const (
	// BM25K1 and BM25B are the standard BM25 parameters named in spec §4.H.
	BM25K1 = 1.2
	BM25B  = 0.75
)

// Posting is one (chunk id, term frequency) pair for a token.
type Posting struct {
	ChunkID uint64
	TF      int
}

// postingList is the on-disk value for one token: its postings only.
// Per-chunk document lengths are stored separately under docLenPrefix keys.
type postingList struct {
	Postings []Posting
}

// Index wraps the postings bucket and maintains the average-document-
// length statistic BM25 needs.
type Index struct {
	kv *kvstore.Store
}

func New(kv *kvstore.Store) *Index {
	return &Index{kv: kv}
}

// docLenPrefix/statsKey are reserved keys inside the postings bucket
// distinct from token keys (tokens never start with the \x00 byte because
// Tokenize keeps only letters, digits and underscores).
const (
	docLenPrefix = "\x00doclen:"
	statsKey     = "\x00stats"
)

type corpusStats struct {
	TotalLen   uint64
	DocCount   uint64
}

// Tokenize performs Unicode word-segmentation with case-folding, per
// spec §3's posting-entry tokenization rule. Stemming is out of scope.
func Tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// tokenizeRaw applies the same word-segmentation rule as Tokenize but
// preserves case, for the exact-match track FindExact reads.
func tokenizeRaw(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// exactKey namespaces a case-preserved identifier away from the
// lowercase BM25 token keyspace with a 0x01 prefix byte, which no
// Tokenize output can ever produce (Tokenize only emits letters,
// digits, and underscores).
func exactKey(identifier string) []byte {
	key := make([]byte, 0, len(identifier)+1)
	key = append(key, 0x01)
	return append(key, identifier...)
}

// IndexChunk tokenizes path+signature+content and inserts postings for
// chunkID, updating corpus statistics. It also populates the
// case-preserving exact-match track FindExact reads. Call within the
// same logical write batch as the payload/vector writes for the chunk.
func (x *Index) IndexChunk(chunkID uint64, path, signature, content string) error {
	text := path + " " + signature + " " + content
	tokens := Tokenize(text)
	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}

	rawTokens := tokenizeRaw(text)
	exactSeen := make(map[string]bool, len(rawTokens))

	return x.kv.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvstore.BucketPostings)
		for token, tf := range freq {
			if err := appendPosting(b, []byte(token), Posting{ChunkID: chunkID, TF: tf}); err != nil {
				return err
			}
		}
		for _, t := range rawTokens {
			if exactSeen[t] {
				continue
			}
			exactSeen[t] = true
			if err := appendPosting(b, exactKey(t), Posting{ChunkID: chunkID, TF: 1}); err != nil {
				return err
			}
		}
		if err := b.Put(docLenKey(chunkID), encodeUint64(uint64(len(tokens)))); err != nil {
			return err
		}
		stats := readStats(b)
		stats.TotalLen += uint64(len(tokens))
		stats.DocCount++
		return writeStats(b, stats)
	})
}

// DeleteChunk removes chunkID from every posting list it appears in.
// This is O(vocabulary) per chunk deleted — acceptable for the file-
// level batch sizes this system operates at.
func (x *Index) DeleteChunk(chunkID uint64) error {
	return x.kv.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvstore.BucketPostings)
		docLen := decodeUint64(b.Get(docLenKey(chunkID)))

		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(k) > 0 && k[0] == 0 {
				continue // reserved keys
			}
			var pl postingList
			if err := gobDecode(v, &pl); err != nil {
				return err
			}
			filtered := pl.Postings[:0]
			changed := false
			for _, p := range pl.Postings {
				if p.ChunkID == chunkID {
					changed = true
					continue
				}
				filtered = append(filtered, p)
			}
			if !changed {
				continue
			}
			if len(filtered) == 0 {
				if err := b.Delete(k); err != nil {
					return err
				}
				continue
			}
			pl.Postings = filtered
			data, err := gobEncode(&pl)
			if err != nil {
				return err
			}
			if err := b.Put(k, data); err != nil {
				return err
			}
		}

		if docLen > 0 {
			if err := b.Delete(docLenKey(chunkID)); err != nil {
				return err
			}
			stats := readStats(b)
			if stats.TotalLen >= docLen {
				stats.TotalLen -= docLen
			}
			if stats.DocCount > 0 {
				stats.DocCount--
			}
			return writeStats(b, stats)
		}
		return nil
	})
}

// Result is a BM25-scored hit.
type Result struct {
	ChunkID uint64
	Score   float64
}

// Search returns the top-K chunks by BM25 score for query, per spec
// §4.H.
func (x *Index) Search(query string, topK int) ([]Result, error) {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	scores := make(map[uint64]float64)
	err := x.kv.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvstore.BucketPostings)
		stats := readStats(b)
		if stats.DocCount == 0 {
			return nil
		}
		avgLen := float64(stats.TotalLen) / float64(stats.DocCount)

		seen := make(map[string]bool)
		for _, token := range tokens {
			if seen[token] {
				continue
			}
			seen[token] = true

			data := b.Get([]byte(token))
			if data == nil {
				continue
			}
			var pl postingList
			if err := gobDecode(data, &pl); err != nil {
				return err
			}
			idf := idf(float64(stats.DocCount), float64(len(pl.Postings)))
			for _, p := range pl.Postings {
				docLen := decodeUint64(b.Get(docLenKey(p.ChunkID)))
				score := bm25Term(float64(p.TF), idf, float64(docLen), avgLen)
				scores[p.ChunkID] += score
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lexical: search: %w", err)
	}

	results := make([]Result, 0, len(scores))
	for id, s := range scores {
		results = append(results, Result{ChunkID: id, Score: s})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// FindExact performs the case-sensitive identifier-exact lookup used by
// find_references (spec §4.L): it reads the case-preserving track
// populated by IndexChunk, so "Handle" and "handle" never match each
// other even though Search's BM25 ranking folds both to the same term.
func (x *Index) FindExact(identifier string) ([]Result, error) {
	var results []Result
	err := x.kv.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(kvstore.BucketPostings)
		data := b.Get(exactKey(identifier))
		if data == nil {
			return nil
		}
		var pl postingList
		if err := gobDecode(data, &pl); err != nil {
			return err
		}
		seen := make(map[uint64]bool, len(pl.Postings))
		for _, p := range pl.Postings {
			if seen[p.ChunkID] {
				continue
			}
			seen[p.ChunkID] = true
			results = append(results, Result{ChunkID: p.ChunkID, Score: 1.0})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lexical: find exact: %w", err)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ChunkID < results[j].ChunkID })
	return results, nil
}

func idf(docCount, docFreq float64) float64 {
	if docFreq == 0 {
		return 0
	}
	return math.Log((docCount-docFreq+0.5)/(docFreq+0.5) + 1)
}

func bm25Term(tf, idf, docLen, avgLen float64) float64 {
	denom := tf + BM25K1*(1-BM25B+BM25B*docLen/avgLen)
	if denom == 0 {
		return 0
	}
	return idf * (tf * (BM25K1 + 1) / denom)
}

func appendPosting(b *bolt.Bucket, key []byte, p Posting) error {
	data := b.Get(key)
	var pl postingList
	if data != nil {
		if err := gobDecode(data, &pl); err != nil {
			return err
		}
	}
	pl.Postings = append(pl.Postings, p)
	encoded, err := gobEncode(&pl)
	if err != nil {
		return err
	}
	return b.Put(key, encoded)
}

func docLenKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", docLenPrefix, id))
}

func readStats(b *bolt.Bucket) corpusStats {
	data := b.Get([]byte(statsKey))
	if data == nil {
		return corpusStats{}
	}
	var s corpusStats
	_ = gobDecode(data, &s)
	return s
}

func writeStats(b *bolt.Bucket, s corpusStats) error {
	data, err := gobEncode(&s)
	if err != nil {
		return err
	}
	return b.Put([]byte(statsKey), data)
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeUint64(data []byte) uint64 {
	if len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

func gobEncode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
