// Package vote implements the vote type and the serial vote processor
// (spec component C8): signature verification, routing each vote's
// hashes to their election by qualified root, and replay/cooldown
// classification delegated to the election arena.
package vote

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/election"
	"github.com/FutureHeadCoin/futurehead-node-sub000/pkg/logging"
)

// maxHashesPerVote bounds how many roots a single ballot can cover, so a
// representative can vote on several elections at once without the
// message growing unbounded.
const maxHashesPerVote = 12

var errTooManyHashes = errors.New("vote: too many hashes in a single ballot")

// Vote is one representative's ballot, covering one or more candidate
// block hashes across possibly-distinct elections.
type Vote struct {
	Voter     blocks.Account
	Sequence  uint64
	Hashes    []blocks.BlockHash
	Signature blocks.Signature
	Timestamp time.Time
}

// SigningBytes returns the canonical byte sequence the vote's signature
// covers: voter, sequence, then each hash in order.
func (v *Vote) SigningBytes() []byte {
	buf := make([]byte, 0, 32+8+len(v.Hashes)*32)
	buf = append(buf, v.Voter[:]...)
	var seq [8]byte
	putUint64(seq[:], v.Sequence)
	buf = append(buf, seq[:]...)
	for _, h := range v.Hashes {
		buf = append(buf, h[:]...)
	}
	return buf
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// Verify checks Signature against Voter's declared public key.
func (v *Vote) Verify() bool {
	pub := ed25519.PublicKey(v.Voter[:])
	return ed25519.Verify(pub, v.SigningBytes(), v.Signature[:])
}

// Code mirrors election.Class, plus Invalid for a vote whose signature
// does not verify: an invalid vote is never observed by any election.
type Code int

const (
	CodeVote Code = iota
	CodeReplay
	CodeIndeterminate
	CodeInvalid
)

func (c Code) String() string {
	switch c {
	case CodeVote:
		return "vote"
	case CodeReplay:
		return "replay"
	case CodeIndeterminate:
		return "indeterminate"
	case CodeInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

func fromClass(c election.Class) Code {
	switch c {
	case election.ClassVote:
		return CodeVote
	case election.ClassReplay:
		return CodeReplay
	default:
		return CodeIndeterminate
	}
}

// Processor is the single serial worker draining the global vote queue.
type Processor struct {
	arena *election.Arena
	log   *logging.Logger
	queue chan voteJob
	done  chan struct{}
}

type voteJob struct {
	v      Vote
	result chan []Code
}

func New(arena *election.Arena, log *logging.Logger) *Processor {
	return &Processor{
		arena: arena,
		log:   log,
		queue: make(chan voteJob, 4096),
		done:  make(chan struct{}),
	}
}

// Run drains the queue until Close is called.
func (p *Processor) Run() {
	for j := range p.queue {
		codes := p.processOne(j.v)
		if j.result != nil {
			j.result <- codes
		}
	}
	close(p.done)
}

// Close stops accepting new votes and waits for Run to drain.
func (p *Processor) Close() {
	close(p.queue)
	<-p.done
}

// Submit enqueues v for asynchronous processing.
func (p *Processor) Submit(v Vote) {
	p.queue <- voteJob{v: v}
}

// Blocking runs v through the same pipeline as Submit but waits for the
// result, one code per hash in v.Hashes, in order. This is the "blocking
// vote" API the spec calls for tests to use in place of polling.
func (p *Processor) Blocking(v Vote) []Code {
	result := make(chan []Code, 1)
	p.queue <- voteJob{v: v, result: result}
	return <-result
}

func (p *Processor) processOne(v Vote) []Code {
	if len(v.Hashes) == 0 {
		return nil
	}
	if len(v.Hashes) > maxHashesPerVote {
		if p.log != nil {
			p.log.Warn("vote: oversized ballot rejected", logging.Field{Key: "error", Value: errTooManyHashes.Error()})
		}
		codes := make([]Code, len(v.Hashes))
		for i := range codes {
			codes[i] = CodeInvalid
		}
		return codes
	}
	if !v.Verify() {
		if p.log != nil {
			p.log.Warn("vote: signature verification failed", logging.Field{Key: "voter", Value: v.Voter})
		}
		codes := make([]Code, len(v.Hashes))
		for i := range codes {
			codes[i] = CodeInvalid
		}
		return codes
	}

	codes := make([]Code, len(v.Hashes))
	for i, hash := range v.Hashes {
		root, ok := p.arena.RootForCandidate(hash)
		if !ok {
			// No open election knows this hash yet; route it as
			// indeterminate so the caller can retry once the block
			// arrives, mirroring the arena's own buffering for votes
			// that race ahead of Insert.
			codes[i] = CodeIndeterminate
			continue
		}
		class := p.arena.Vote(root, v.Voter, hash, v.Sequence, v.Timestamp)
		codes[i] = fromClass(class)
	}
	return codes
}
