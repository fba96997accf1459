package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	dErrors "docucred/pkg/domain-errors"
)

type SecretsSuite struct {
	suite.Suite
	hasher *Hasher
}

func TestSecretsSuite(t *testing.T) {
	suite.Run(t, new(SecretsSuite))
}

func (s *SecretsSuite) SetupTest() {
	s.hasher = NewHasher(bcrypt.MinCost)
}

func (s *SecretsSuite) TestHashAndVerify() {
	hash, err := s.hasher.Hash("correct horse")
	s.Require().NoError(err)
	s.NotEqual("correct horse", hash)

	s.NoError(s.hasher.Verify("correct horse", hash))

	err = s.hasher.Verify("wrong horse", hash)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
}

func (s *SecretsSuite) TestHashIsSalted() {
	a, err := s.hasher.Hash("same")
	s.Require().NoError(err)
	b, err := s.hasher.Hash("same")
	s.Require().NoError(err)
	s.NotEqual(a, b)
}

func (s *SecretsSuite) TestHashRejects() {
	s.Run("empty", func() {
		_, err := s.hasher.Hash("")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("too long", func() {
		_, err := s.hasher.Hash(strings.Repeat("x", MaxPasswordBytes+1))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *SecretsSuite) TestVerifyMalformedHash() {
	err := s.hasher.Verify("pw", "not-a-bcrypt-hash")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *SecretsSuite) TestNewHasherClampsCost() {
	s.Equal(bcrypt.DefaultCost, NewHasher(0).cost)
	s.Equal(bcrypt.DefaultCost, NewHasher(99).cost)
}
