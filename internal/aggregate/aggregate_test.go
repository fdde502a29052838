package aggregate

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/models"
)

type fakeGuardians struct {
	byID map[int64]*models.Guardian
	err  error
}

func (f *fakeGuardians) GuardianByID(_ context.Context, id int64) (*models.Guardian, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[id], nil
}

type fakeSchools struct {
	list []models.School
	err  error
}

func (f *fakeSchools) Schools(context.Context) ([]models.School, error) {
	return f.list, f.err
}

func TestAcrossTenantsMergesAndSkipsFailures(t *testing.T) {
	guardians := &fakeGuardians{byID: map[int64]*models.Guardian{7: {ID: 7}}}
	schools := &fakeSchools{list: []models.School{{ID: 1}, {ID: 2}, {ID: 3}}}

	query := func(_ context.Context, school models.School) ([]string, error) {
		switch school.ID {
		case 1:
			return []string{"a1", "a2"}, nil
		case 2:
			return nil, errors.New("connection refused")
		default:
			return []string{"c1"}, nil
		}
	}

	got, err := AcrossTenants(context.Background(), guardians, schools, 7, query, zap.NewNop())
	if err != nil {
		t.Fatalf("AcrossTenants: %v", err)
	}
	want := []string{"a1", "a2", "c1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestAcrossTenantsUnknownGuardian(t *testing.T) {
	guardians := &fakeGuardians{byID: map[int64]*models.Guardian{}}
	schools := &fakeSchools{list: []models.School{{ID: 1}}}

	query := func(context.Context, models.School) ([]int, error) {
		t.Fatal("query must not run for an unknown guardian")
		return nil, nil
	}

	_, err := AcrossTenants(context.Background(), guardians, schools, 99, query, nil)
	if !errors.Is(err, ErrUnknownGuardian) {
		t.Fatalf("err = %v, want ErrUnknownGuardian", err)
	}
}

func TestAcrossTenantsEmptyWhenNoTenantAnswers(t *testing.T) {
	guardians := &fakeGuardians{byID: map[int64]*models.Guardian{7: {ID: 7}}}
	schools := &fakeSchools{list: []models.School{{ID: 1}, {ID: 2}}}

	query := func(context.Context, models.School) ([]int, error) {
		return nil, errors.New("unreachable")
	}

	got, err := AcrossTenants(context.Background(), guardians, schools, 7, query, zap.NewNop())
	if err != nil {
		t.Fatalf("AcrossTenants: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestAcrossTenantsSystemStoreFailure(t *testing.T) {
	guardians := &fakeGuardians{err: errors.New("system db down")}
	schools := &fakeSchools{}

	_, err := AcrossTenants(context.Background(), guardians, schools, 7, func(context.Context, models.School) ([]int, error) {
		return nil, nil
	}, nil)
	if err == nil {
		t.Fatal("expected error when guardian lookup fails")
	}
}
