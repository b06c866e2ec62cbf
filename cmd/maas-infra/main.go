package main

import (
	"log"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/mrmushfiq/maas-platform/internal/infra"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		cfg, err := infra.LoadStackConfig(ctx)
		if err != nil {
			return err
		}
		log.Printf("Declaring MaaS platform: env=%s models=%d packaged=%d",
			cfg.Environment, len(cfg.Catalog.Models), len(cfg.Catalog.Packaged()))

		return infra.Run(ctx, cfg)
	})
}
