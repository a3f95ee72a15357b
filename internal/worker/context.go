package worker

import (
	"context"
	"errors"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/repository"
)

var errNoOrganization = errors.New("job has no organization")

// withOrganization scopes ctx to the organization stored on the job record.
// Services read the organization from the context, exactly as they do for
// HTTP requests.
func withOrganization(ctx context.Context, job repository.Job) (context.Context, error) {
	if !job.OrganizationID.Valid {
		return ctx, errNoOrganization
	}
	return domain.NewContextWithOrganization(ctx, postgres.FromUUID(job.OrganizationID)), nil
}
