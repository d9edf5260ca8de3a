package service

import (
	"context"
	"fmt"

	"github.com/kylinctl/kylinctl/internal/schema"
)

// KE3 is a Kyligence Enterprise 3 server. It shares the Kylin endpoints
// and adds a few KAP-only calls.
type KE3 struct {
	*Kylin
}

// NewKE3 returns a v2 service for project.
func NewKE3(r Requester, project string) *KE3 {
	return &KE3{Kylin: &Kylin{r: r, project: project, v2: true}}
}

// CubeSQL returns the flat-table SQL of a cube.
func (k *KE3) CubeSQL(ctx context.Context, cube string) (string, error) {
	var out struct {
		SQL string `json:"sql"`
	}
	if err := k.r.Get(ctx, "/cubes/"+cube+"/sql", nil, &out); err != nil {
		return "", fmt.Errorf("cube %s: sql: %w", cube, err)
	}
	return out.SQL, nil
}

// Users lists the server's users.
func (k *KE3) Users(ctx context.Context) ([]schema.UserDetails, error) {
	var out struct {
		Users []schema.UserDetails `json:"users"`
	}
	if err := k.r.Get(ctx, "/kap/user/users", nil, &out); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return out.Users, nil
}
