package modelcar

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// Pusher uploads images, logging in to ECR when the target is an ECR host
type Pusher struct {
	Keychain authn.Keychain
	// NewECR is called for ECR targets. Defaults to NewECRClient.
	NewECR func(ctx context.Context, region string) (ECRTokenAPI, error)
	// Insecure allows plain HTTP registries
	Insecure bool
}

// Push writes img to ref and returns the pushed digest reference
func (p *Pusher) Push(ctx context.Context, img v1.Image, ref string) (string, error) {
	var nameOpts []name.Option
	if p.Insecure {
		nameOpts = append(nameOpts, name.Insecure)
	}
	target, err := name.ParseReference(ref, nameOpts...)
	if err != nil {
		return "", fmt.Errorf("invalid image reference %q: %w", ref, err)
	}

	auth, err := p.authenticator(ctx, target.Context().Registry)
	if err != nil {
		return "", err
	}

	if err := remote.Write(target, img, remote.WithContext(ctx), remote.WithAuth(auth)); err != nil {
		return "", fmt.Errorf("failed to push %s: %w", target, err)
	}

	digest, err := img.Digest()
	if err != nil {
		return "", err
	}
	return target.Context().Digest(digest.String()).String(), nil
}

func (p *Pusher) authenticator(ctx context.Context, registry name.Registry) (authn.Authenticator, error) {
	if account, region, ok := ParseECRHost(registry.RegistryStr()); ok {
		newECR := p.NewECR
		if newECR == nil {
			newECR = func(ctx context.Context, region string) (ECRTokenAPI, error) {
				return NewECRClient(ctx, region)
			}
		}
		api, err := newECR(ctx, region)
		if err != nil {
			return nil, err
		}
		return ECRAuthenticator(ctx, api, account)
	}

	keychain := p.Keychain
	if keychain == nil {
		keychain = authn.DefaultKeychain
	}
	return keychain.Resolve(registry)
}
