package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// Members reads the member directory.
type Members struct {
	api Requester
}

// List returns all members grouped by division.
func (m *Members) List(ctx context.Context) (MembersByDivision, error) {
	var out MembersByDivision
	if err := m.api.Do(ctx, http.MethodGet, "/members/", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	if out == nil {
		out = MembersByDivision{}
	}
	return out, nil
}

// Get returns one member.
func (m *Members) Get(ctx context.Context, id int) (Member, error) {
	if err := checkID(id); err != nil {
		return Member{}, err
	}

	var out Member
	if err := m.api.Do(ctx, http.MethodGet, "/members/"+strconv.Itoa(id), nil, nil, &out); err != nil {
		return Member{}, fmt.Errorf("getting member %d: %w", id, err)
	}
	return out, nil
}
