// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/accounts/internal/store"
)

var _ = Describe("Postgres store", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		pool      *pgxpool.Pool
	)

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("accounts_test"),
			postgres.WithUsername("accounts"),
			postgres.WithPassword("accounts"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			Expect(container.Terminate(ctx)).To(Succeed())
		}
	})

	It("connects with retry", func() {
		var err error
		pool, err = store.Connect(ctx, connStr, store.ConnectOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(pool.Ping(ctx)).To(Succeed())
	})

	Describe("migrations", Ordered, func() {
		var migrator *store.Migrator

		BeforeAll(func() {
			var err error
			migrator, err = store.NewMigrator(connStr)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() { _ = migrator.Close() })
		})

		It("starts empty with every migration pending", func() {
			version, dirty, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(BeZero())
			Expect(dirty).To(BeFalse())

			pending, err := migrator.Pending()
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(Equal([]uint{1, 2}))
		})

		It("applies every migration", func() {
			Expect(migrator.Up()).To(Succeed())

			version, dirty, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(uint(2)))
			Expect(dirty).To(BeFalse())

			pending, err := migrator.Pending()
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())
		})

		It("treats a repeated up as a no-op", func() {
			Expect(migrator.Up()).To(Succeed())
		})

		It("enforces case-insensitive email uniqueness", func() {
			_, err := pool.Exec(ctx, `INSERT INTO users (id, name, email, password_hash) VALUES ('a', 'ann', 'ann@x.com', 'h')`)
			Expect(err).NotTo(HaveOccurred())

			_, err = pool.Exec(ctx, `INSERT INTO users (id, name, email, password_hash) VALUES ('b', 'ann', 'ANN@x.com', 'h')`)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("users_email_lower_idx"))

			_, err = pool.Exec(ctx, `DELETE FROM users`)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects half-set OTP columns", func() {
			_, err := pool.Exec(ctx, `INSERT INTO users (id, name, email, password_hash, verify_otp) VALUES ('c', 'bob', 'bob@x.com', 'h', '123456')`)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("users_verify_otp_pair"))
		})

		It("rolls everything back", func() {
			Expect(migrator.Down()).To(Succeed())

			version, _, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(BeZero())

			var exists bool
			err = pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'users')`).Scan(&exists)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})
	})
})
