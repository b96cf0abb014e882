package main

import (
	"fmt"
	"net/netip"

	"github.com/go-playground/validator/v10"

	"github.com/rotkonetworks/gavel/pkg/rpc"
)

var validate = validator.New()

// endpointOptions are the connection arguments shared by every subcommand.
type endpointOptions struct {
	Endpoint string `validate:"required,url"`
	Resolve  string `validate:"omitempty,ipv4"`
}

func (o endpointOptions) endpoint() (rpc.Endpoint, error) {
	if err := validate.Struct(o); err != nil {
		return rpc.Endpoint{}, fmt.Errorf("%w: %w", rpc.ErrAddress, err)
	}

	var override netip.Addr
	if o.Resolve != "" {
		addr, err := netip.ParseAddr(o.Resolve)
		if err != nil {
			return rpc.Endpoint{}, fmt.Errorf("%w: %w", rpc.ErrAddress, err)
		}
		override = addr
	}
	return rpc.ParseEndpoint(o.Endpoint, override)
}

type fetchOptions struct {
	endpointOptions
	Block    string
	Metadata bool
}

type mmrOptions struct {
	endpointOptions
	Numbers string
}
