package policies

import (
	"errors"
	"testing"

	"sol-backend/internal/domain"
	"sol-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRequireSteward(t *testing.T) {
	founder := domain.Actor{UserID: uuid.New(), Role: constants.Member}
	sol := &domain.Sol{SolID: uuid.New(), FounderID: founder.UserID}

	assert.NoError(t, RequireSteward(founder, sol, "activate"))
	assert.NoError(t, RequireSteward(domain.Actor{UserID: uuid.New(), Role: constants.Superadmin}, sol, "activate"))

	err := RequireSteward(domain.Actor{UserID: uuid.New(), Role: constants.Member}, sol, "activate")
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	assert.Contains(t, err.Error(), "may activate")

	assert.Error(t, RequireSteward(domain.Actor{}, &domain.Sol{}, "cancel"))
}

func TestValidateRemoval(t *testing.T) {
	founder := domain.Actor{UserID: uuid.New(), Role: constants.Member}
	member := domain.Actor{UserID: uuid.New(), Role: constants.Member}
	sol := &domain.Sol{SolID: uuid.New(), FounderID: founder.UserID}
	target := &domain.Participant{ParticipantID: uuid.New(), UserID: member.UserID}
	founderPart := &domain.Participant{ParticipantID: uuid.New(), UserID: founder.UserID}

	assert.NoError(t, ValidateRemoval(member, sol, target))
	assert.NoError(t, ValidateRemoval(founder, sol, target))
	assert.NoError(t, ValidateRemoval(domain.Actor{UserID: uuid.New(), Role: constants.Admin}, sol, target))

	stranger := domain.Actor{UserID: uuid.New(), Role: constants.Member}
	assert.True(t, errors.Is(ValidateRemoval(stranger, sol, target), domain.ErrForbidden))
	assert.True(t, errors.Is(ValidateRemoval(founder, sol, founderPart), domain.ErrForbidden))
}
