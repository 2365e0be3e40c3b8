package remote

import (
	"context"
	"fmt"
	"sort"

	"github.com/gritvcs/grit/pkg/object"
	"github.com/gritvcs/grit/pkg/repo"
)

// CloneStage names the phases of a clone for error reporting and progress.
type CloneStage string

const (
	StageDiscovery   CloneStage = "discovery"
	StageNegotiation CloneStage = "negotiation"
	StageTransfer    CloneStage = "transfer"
	StageUnpack      CloneStage = "unpack"
	StageCheckout    CloneStage = "checkout"
)

// CloneOptions configures Clone.
type CloneOptions struct {
	OnProgress func(string) // side-band progress and stage notices
}

// Clone clones the repository at remoteURL into destination:
// discover refs, negotiate and transfer a pack for every advertised branch
// tip, unpack all objects into a fresh repository, then check out the
// remote's default branch and point HEAD at it. Refs are written only after
// checkout succeeds, so a failed clone leaves at most unreferenced objects
// behind.
func Clone(ctx context.Context, remoteURL, destination string, opts CloneOptions) (*repo.Repo, error) {
	client := NewClientWithOptions(remoteURL, ClientOptions{OnProgress: opts.OnProgress})

	notify := func(stage CloneStage) {
		if opts.OnProgress != nil {
			opts.OnProgress(string(stage) + "\n")
		}
	}

	notify(StageDiscovery)
	adv, err := client.DiscoverRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("clone: %s: %w", StageDiscovery, err)
	}

	branches := adv.Branches()
	if len(branches) == 0 {
		return nil, fmt.Errorf("clone: %s: remote advertised no branches: %w", StageDiscovery, ErrProtocol)
	}
	defaultBranch, defaultHash, err := adv.DefaultBranch()
	if err != nil {
		return nil, fmt.Errorf("clone: %s: %w", StageDiscovery, err)
	}

	wants := make([]object.Hash, 0, len(branches))
	for _, h := range branches {
		wants = append(wants, h)
	}

	notify(StageNegotiation)
	pack, err := client.FetchPack(ctx, adv, wants)
	if err != nil {
		return nil, fmt.Errorf("clone: %s: %w", StageTransfer, err)
	}

	r, err := repo.Init(destination)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}

	notify(StageUnpack)
	objs, err := object.ReadPack(pack)
	if err != nil {
		return nil, fmt.Errorf("clone: %s: %w", StageUnpack, err)
	}
	for _, obj := range objs {
		if _, err := r.Store.Write(obj.Type, obj.Data); err != nil {
			return nil, fmt.Errorf("clone: %s: store %s: %w", StageUnpack, obj.Hash, err)
		}
	}

	notify(StageCheckout)
	if err := r.CheckoutCommit(defaultHash); err != nil {
		return nil, fmt.Errorf("clone: %s: %w", StageCheckout, err)
	}

	// Checkout succeeded: record branch refs and HEAD.
	names := make([]string, 0, len(branches))
	for name := range branches {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.UpdateRef("refs/heads/"+name, branches[name]); err != nil {
			return nil, fmt.Errorf("clone: %s: %w", StageCheckout, err)
		}
	}
	if err := r.SetHead(defaultBranch, ""); err != nil {
		return nil, fmt.Errorf("clone: %s: %w", StageCheckout, err)
	}

	if err := r.SetRemote("origin", remoteURL); err != nil {
		return nil, fmt.Errorf("clone: %s: %w", StageCheckout, err)
	}

	return r, nil
}
