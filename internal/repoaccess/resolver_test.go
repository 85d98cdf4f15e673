package repoaccess_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/janburzinski/notra/common/crypto"
	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/repoaccess"
	"github.com/janburzinski/notra/internal/store"
)

type fakeRepositoryStore struct {
	integrations map[string]*model.RepositoryIntegration
	err          error
}

func (f *fakeRepositoryStore) GetByID(_ context.Context, id string) (*model.RepositoryIntegration, error) {
	if f.err != nil {
		return nil, f.err
	}
	if integration, ok := f.integrations[id]; ok {
		return integration, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeRepositoryStore) GetForOrganization(ctx context.Context, id, organizationID string) (*model.RepositoryIntegration, error) {
	integration, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if integration.OrganizationID != organizationID {
		return nil, store.ErrNotFound
	}
	return integration, nil
}

func (f *fakeRepositoryStore) Create(_ context.Context, integration *model.RepositoryIntegration) error {
	f.integrations[integration.ID] = integration
	return nil
}

func strPtr(s string) *string { return &s }

var _ = Describe("Resolver", func() {
	var (
		ctx       context.Context
		repos     *fakeRepositoryStore
		encryptor *crypto.FieldEncryptor
		resolver  *repoaccess.Resolver
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		encryptor, err = crypto.DeriveFieldEncryptor([]byte("test-master-secret"), crypto.PurposeAccessToken)
		Expect(err).NotTo(HaveOccurred())

		sealed, err := encryptor.Encrypt("ghp_secret", "int-1")
		Expect(err).NotTo(HaveOccurred())

		repos = &fakeRepositoryStore{integrations: map[string]*model.RepositoryIntegration{
			"int-1": {
				ID: "int-1", OrganizationID: "org-1", Provider: model.ProviderGitHub,
				Owner: " acme ", Repo: "rocket", Enabled: true, RepositoryEnabled: true,
				EncryptedToken: strPtr(sealed),
			},
			"int-off": {
				ID: "int-off", OrganizationID: "org-1", Provider: model.ProviderGitHub,
				Owner: "acme", Repo: "old", Enabled: false, RepositoryEnabled: true,
			},
			"int-repo-off": {
				ID: "int-repo-off", OrganizationID: "org-1", Provider: model.ProviderGitHub,
				Owner: "acme", Repo: "older", Enabled: true, RepositoryEnabled: false,
			},
			"int-broken": {
				ID: "int-broken", OrganizationID: "org-1", Provider: model.ProviderGitHub,
				Owner: "acme", Repo: "  ", Enabled: true, RepositoryEnabled: true,
			},
			"int-public": {
				ID: "int-public", OrganizationID: "org-2", Provider: model.ProviderGitLab,
				Owner: "group", Repo: "project", Enabled: true, RepositoryEnabled: true,
			},
		}}
		resolver = repoaccess.NewResolver(repos, encryptor)
	})

	It("returns a context with the decrypted token and trimmed coordinates", func() {
		repo, err := resolver.Resolve(ctx, "int-1", repoaccess.ResolveOptions{})

		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Owner).To(Equal("acme"))
		Expect(repo.Repo).To(Equal("rocket"))
		Expect(repo.FullName()).To(Equal("acme/rocket"))
		Expect(repo.Token).To(Equal("ghp_secret"))
		Expect(repo.Provider).To(Equal(model.ProviderGitHub))
	})

	It("leaves the token empty when none is stored", func() {
		repo, err := resolver.Resolve(ctx, "int-public", repoaccess.ResolveOptions{})

		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Token).To(BeEmpty())
		Expect(repo.Provider).To(Equal(model.ProviderGitLab))
	})

	It("rejects unknown integrations", func() {
		_, err := resolver.Resolve(ctx, "nope", repoaccess.ResolveOptions{})

		Expect(errors.Is(err, repoaccess.ErrNotFound)).To(BeTrue())
		Expect(err.Error()).To(Equal("Repository access denied. Unknown integrationId nope."))
	})

	It("treats integrations of another organization as unknown", func() {
		_, err := resolver.Resolve(ctx, "int-public", repoaccess.ResolveOptions{OrganizationID: "org-1"})

		Expect(errors.Is(err, repoaccess.ErrNotFound)).To(BeTrue())
	})

	DescribeTable("rejects disabled integrations",
		func(integrationID string) {
			_, err := resolver.Resolve(ctx, integrationID, repoaccess.ResolveOptions{})

			Expect(errors.Is(err, repoaccess.ErrDisabled)).To(BeTrue())
			Expect(err.Error()).To(Equal("Repository access denied for integrationId " + integrationID + ". Integration is disabled."))
		},
		Entry("integration switched off", "int-off"),
		Entry("repository switched off", "int-repo-off"),
	)

	It("rejects integrations without owner and repo", func() {
		_, err := resolver.Resolve(ctx, "int-broken", repoaccess.ResolveOptions{})

		Expect(errors.Is(err, repoaccess.ErrMisconfigured)).To(BeTrue())
		Expect(err.Error()).To(Equal("Repository configuration missing for integrationId int-broken."))
	})

	It("fails when the token cannot be decrypted", func() {
		repos.integrations["int-1"].EncryptedToken = strPtr("enc:v1:not-base64!")

		_, err := resolver.Resolve(ctx, "int-1", repoaccess.ResolveOptions{})

		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, crypto.ErrMalformed)).To(BeTrue())
	})

	It("wraps unexpected store errors", func() {
		repos.err = errors.New("connection reset")

		_, err := resolver.Resolve(ctx, "int-1", repoaccess.ResolveOptions{})

		Expect(err).To(MatchError(ContainSubstring("connection reset")))
		Expect(errors.Is(err, repoaccess.ErrNotFound)).To(BeFalse())
	})
})

var _ = Describe("AllowList", func() {
	It("rejects integrations that are not listed", func() {
		allow := repoaccess.NewAllowList(repoaccess.AllowedRepository{IntegrationID: "int-1", Owner: "acme", Repo: "rocket"})

		entry, err := allow.Lookup("int-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(entry.Repo).To(Equal("rocket"))

		_, err = allow.Lookup("int-off")
		Expect(errors.Is(err, repoaccess.ErrNotAllowed)).To(BeTrue())
		Expect(err.Error()).To(Equal("Repository access denied. integrationId int-off is not in the allowed repositories for this run."))
	})

	It("returns entries sorted by integration id", func() {
		allow := repoaccess.NewAllowList(
			repoaccess.AllowedRepository{IntegrationID: "b", Owner: "o", Repo: "two"},
			repoaccess.AllowedRepository{IntegrationID: "a", Owner: "o", Repo: "one"},
		)

		Expect(allow.Len()).To(Equal(2))
		Expect(allow.Entries()).To(HaveExactElements(
			repoaccess.AllowedRepository{IntegrationID: "a", Owner: "o", Repo: "one"},
			repoaccess.AllowedRepository{IntegrationID: "b", Owner: "o", Repo: "two"},
		))
	})

	It("collapses duplicate ids", func() {
		allow := repoaccess.NewAllowList(
			repoaccess.AllowedRepository{IntegrationID: "a", Repo: "one"},
			repoaccess.AllowedRepository{IntegrationID: "a", Repo: "one"},
		)
		Expect(allow.Len()).To(Equal(1))
	})
})
