package user_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	userDatamodel "github.com/frahmantamala/hrms-identity/internal/core/datamodel/user"
	"github.com/frahmantamala/hrms-identity/internal/user"
)

var _ = Describe("Role", func() {
	DescribeTable("ParseRole accepts bare and prefixed names",
		func(in string, want user.Role) {
			got, err := user.ParseRole(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("upper", "ADMIN", user.RoleAdmin),
		Entry("lower", "hr", user.RoleHR),
		Entry("prefixed", "ROLE_MANAGER", user.RoleManager),
		Entry("padded", " employee ", user.RoleEmployee),
	)

	It("rejects unknown roles", func() {
		_, err := user.ParseRole("ROLE_ROOT")
		Expect(err).To(MatchError(user.ErrUnknownRole))
	})

	It("renders the authority form", func() {
		Expect(user.RoleAdmin.Authority()).To(Equal("ROLE_ADMIN"))
		Expect(user.Authorities([]user.Role{user.RoleHR, user.RoleEmployee})).
			To(Equal([]string{"ROLE_HR", "ROLE_EMPLOYEE"}))
	})

	It("defaults an empty role set to EMPLOYEE and de-duplicates", func() {
		Expect(user.NormalizeRoles(nil)).To(Equal([]user.Role{user.RoleEmployee}))
		Expect(user.NormalizeRoles([]user.Role{user.RoleHR, user.RoleAdmin, user.RoleHR})).
			To(Equal([]user.Role{user.RoleAdmin, user.RoleHR}))
	})
})

var _ = Describe("Identity", func() {
	It("can log in only when every status flag is set", func() {
		id := user.NewIdentity("alice", "alice@example.com", "hash")
		Expect(id.CanLogin()).To(BeTrue())
		Expect(id.Roles).To(Equal([]user.Role{user.RoleEmployee}))

		for _, disable := range []func(*user.Identity){
			func(i *user.Identity) { i.Enabled = false },
			func(i *user.Identity) { i.AccountNonExpired = false },
			func(i *user.Identity) { i.AccountNonLocked = false },
			func(i *user.Identity) { i.CredentialsNonExpired = false },
		} {
			clone := *id
			disable(&clone)
			Expect(clone.CanLogin()).To(BeFalse())
		}
	})

	It("drops unknown stored roles when mapping from the datamodel", func() {
		model := &userDatamodel.User{
			Username: "bob",
			Roles: []userDatamodel.UserRole{
				{Role: "MANAGER"},
				{Role: "WIZARD"},
			},
		}
		id := user.FromDataModel(model)
		Expect(id.Roles).To(Equal([]user.Role{user.RoleManager}))
		Expect(id.HasRole(user.RoleManager)).To(BeTrue())
		Expect(id.HasRole(user.RoleAdmin)).To(BeFalse())
	})

	It("does not grant EMPLOYEE to a stored account with only unknown roles", func() {
		model := &userDatamodel.User{
			Username: "carol",
			Roles:    []userDatamodel.UserRole{{Role: "WIZARD"}},
		}
		id := user.FromDataModel(model)
		Expect(id.Roles).To(BeEmpty())
		Expect(id.HasRole(user.RoleEmployee)).To(BeFalse())
	})
})
