package accesscontrol_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/access-management/internal/accesscontrol"
)

var _ = Describe("PermissionCatalog", func() {
	Describe("Slug", func() {
		It("should kebab-case camel-cased type names", func() {
			Expect(accesscontrol.Slug("Product")).To(Equal("product"))
			Expect(accesscontrol.Slug("ProductPrice")).To(Equal("product-price"))
			Expect(accesscontrol.Slug("PaymentSubType")).To(Equal("payment-sub-type"))
			Expect(accesscontrol.Slug("OfficePayment")).To(Equal("office-payment"))
		})

		It("should keep runs of capitals together", func() {
			Expect(accesscontrol.Slug("CSVExport")).To(Equal("csv-export"))
			Expect(accesscontrol.Slug("PDF")).To(Equal("pdf"))
		})

		It("should normalize spaces and underscores", func() {
			Expect(accesscontrol.Slug("credit_sale")).To(Equal("credit-sale"))
			Expect(accesscontrol.Slug(" Account Group ")).To(Equal("account-group"))
		})
	})

	Describe("CatalogNames", func() {
		It("should derive four actions per entity plus the role and permission extras", func() {
			names := accesscontrol.CatalogNames(accesscontrol.EntitiesFromNames([]string{"Product", "Vehicle"}))

			Expect(names).To(HaveLen(16))
			Expect(names).To(ContainElements(
				"create-product", "update-product", "view-product", "delete-product",
				"create-vehicle", "update-vehicle", "view-vehicle", "delete-vehicle",
				"create-role", "update-role", "view-role", "delete-role",
				"create-permission", "update-permission", "view-permission", "delete-permission",
			))
		})

		It("should still include the extras with no entities registered", func() {
			names := accesscontrol.CatalogNames(nil)

			Expect(names).To(HaveLen(8))
			Expect(names).To(ContainElements("create-role", "delete-permission"))
		})
	})

	Describe("EntitiesFromNames", func() {
		It("should skip blank entries", func() {
			entities := accesscontrol.EntitiesFromNames([]string{"Product", "  ", "", "Vehicle"})
			Expect(entities).To(HaveLen(2))
		})
	})
})
