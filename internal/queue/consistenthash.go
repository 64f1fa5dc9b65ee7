package queue

import (
	"crypto/md5"
	"encoding/binary"
	"sort"
)

// consistentHash is a minimal consistent-hash ring keyed by md5, mirroring
// hudson.util.ConsistentHash from the Jenkins original this spec is
// distilled from. No consistent-hashing library appears anywhere in the
// retrieved example corpus, so this is implemented directly against
// stdlib hash primitives rather than adopting an unrelated dependency.
type consistentHash struct {
	points map[uint32]Node
	sorted []uint32
}

func newConsistentHash() *consistentHash {
	return &consistentHash{points: make(map[uint32]Node)}
}

// add places node on the ring at `replicas` points, weighting its share
// of the ring proportionally (spec 4.7 step 1).
func (c *consistentHash) add(node Node, replicas int) {
	if replicas < 1 {
		replicas = 1
	}
	for i := 0; i < replicas; i++ {
		h := ringHash(node.Name(), i)
		c.points[h] = node
		c.sorted = append(c.sorted, h)
	}
	sort.Slice(c.sorted, func(i, j int) bool { return c.sorted[i] < c.sorted[j] })
}

// list returns every distinct node on the ring, walking clockwise from
// key's hash, so the caller can try each in sticky-placement order (spec
// 4.7 step 2).
func (c *consistentHash) list(key string) []Node {
	if len(c.sorted) == 0 {
		return nil
	}
	h := ringHash(key, -1)
	start := sort.Search(len(c.sorted), func(i int) bool { return c.sorted[i] >= h })

	seen := make(map[string]bool)
	var out []Node
	for i := 0; i < len(c.sorted); i++ {
		idx := (start + i) % len(c.sorted)
		n := c.points[c.sorted[idx]]
		if !seen[n.Name()] {
			seen[n.Name()] = true
			out = append(out, n)
		}
	}
	return out
}

func ringHash(key string, replica int) uint32 {
	sum := md5.Sum([]byte(keyFor(key, replica)))
	return binary.BigEndian.Uint32(sum[:4])
}

func keyFor(key string, replica int) string {
	if replica < 0 {
		return key
	}
	buf := make([]byte, 0, len(key)+8)
	buf = append(buf, key...)
	buf = append(buf, byte(replica), byte(replica>>8), byte(replica>>16), byte(replica>>24))
	return string(buf)
}
