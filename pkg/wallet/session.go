package wallet

import (
	"sync"

	"evmsend/pkg/events"
	"evmsend/pkg/transfer"

	"github.com/ethereum/go-ethereum/common"
)

// Session is the currently connected wallet. It is replaced wholesale when
// the user connects, switches chain or disconnects.
type Session struct {
	mu     sync.RWMutex
	signer *KeySigner
}

func NewSession() *Session {
	return &Session{}
}

// Connect makes signer current and closes the previous chain connection.
// The previous key stays unlocked so it can be reused on another chain.
func (s *Session) Connect(signer *KeySigner) {
	prev := s.swap(signer)
	if prev != nil && prev != signer {
		prev.closeClient()
	}
}

// Disconnect drops the signer, closes its connection and locks its key.
func (s *Session) Disconnect() {
	if prev := s.swap(nil); prev != nil {
		prev.closeClient()
		if l, ok := prev.key.(interface{ Lock() error }); ok {
			_ = l.Lock()
		}
	}
}

func (s *Session) swap(signer *KeySigner) *KeySigner {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.signer
	s.signer = signer
	return prev
}

func (s *Session) Signer() transfer.Signer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.signer == nil {
		return nil
	}
	return s.signer
}

// Current returns the connected signer or nil.
func (s *Session) Current() *KeySigner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signer
}

func (s *Session) Address() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.signer == nil {
		return common.Address{}, false
	}
	return s.signer.Address(), true
}

// Info describes the current connection for hub subscribers. The zero
// value means no wallet is connected.
func (s *Session) Info() events.SessionInfo {
	info := events.SessionInfo{}
	signer := s.Current()
	if signer == nil {
		return info
	}
	info.Address = signer.Address().Hex()
	if c := signer.Client(); c != nil {
		info.Chain = c.Chain().Name
		info.ChainID = c.Chain().ChainID
		info.RPCURL = c.URL()
	}
	return info
}

func (s *KeySigner) closeClient() {
	if s.client != nil {
		s.client.Close()
	}
}
