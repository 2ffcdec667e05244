package core

// Secrets holds the process-wide salt and the per-question expected digests.
// It is built once at startup and never mutated afterwards, so it can be
// shared between concurrent verifications without locking.
type Secrets struct {
	salt    string
	digests map[string]string
}

// NewSecrets copies the given material into an immutable Secrets value
func NewSecrets(salt string, digests map[string]string) *Secrets {
	cp := make(map[string]string, len(digests))
	for ref, digest := range digests {
		if digest == "" {
			continue
		}
		cp[ref] = digest
	}
	return &Secrets{salt: salt, digests: cp}
}

// Salt returns the salt and whether one was provisioned
func (s *Secrets) Salt() (string, bool) {
	if s == nil || s.salt == "" {
		return "", false
	}
	return s.salt, true
}

// Digest returns the expected digest stored under ref
func (s *Secrets) Digest(ref string) (string, bool) {
	if s == nil || ref == "" {
		return "", false
	}
	digest, ok := s.digests[ref]
	return digest, ok
}

// Len returns the number of provisioned digests
func (s *Secrets) Len() int {
	if s == nil {
		return 0
	}
	return len(s.digests)
}
