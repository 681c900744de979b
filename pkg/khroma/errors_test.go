package khroma_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/khroma/pkg/khroma"
)

var _ = Describe("Error", func() {
	It("matches kind sentinels", func() {
		err := fmt.Errorf("wrapped: %w", &khroma.Error{Kind: khroma.KindParse, Op: "heartbeat"})
		Expect(errors.Is(err, khroma.ErrParse)).To(BeTrue())
		Expect(errors.Is(err, khroma.ErrAPI)).To(BeFalse())
	})

	DescribeTable("matches status sentinels for api errors",
		func(status int, sentinel error) {
			err := &khroma.Error{Kind: khroma.KindAPI, Status: status}
			Expect(errors.Is(err, sentinel)).To(BeTrue())
			Expect(errors.Is(err, khroma.ErrAPI)).To(BeTrue())
		},
		Entry("404", http.StatusNotFound, khroma.ErrNotFound),
		Entry("409", http.StatusConflict, khroma.ErrConflict),
		Entry("401", http.StatusUnauthorized, khroma.ErrUnauthorized),
		Entry("403", http.StatusForbidden, khroma.ErrForbidden),
	)

	It("does not match status sentinels for other kinds", func() {
		err := &khroma.Error{Kind: khroma.KindTransport, Status: http.StatusNotFound}
		Expect(errors.Is(err, khroma.ErrNotFound)).To(BeFalse())
	})

	DescribeTable("Retryable",
		func(e *khroma.Error, want bool) {
			Expect(e.Retryable()).To(Equal(want))
		},
		Entry("transport", &khroma.Error{Kind: khroma.KindTransport}, true),
		Entry("api 500", &khroma.Error{Kind: khroma.KindAPI, Status: 500}, true),
		Entry("api 503", &khroma.Error{Kind: khroma.KindAPI, Status: 503}, true),
		Entry("api 429", &khroma.Error{Kind: khroma.KindAPI, Status: 429}, true),
		Entry("api 400", &khroma.Error{Kind: khroma.KindAPI, Status: 400}, false),
		Entry("api 404", &khroma.Error{Kind: khroma.KindAPI, Status: 404}, false),
		Entry("parse", &khroma.Error{Kind: khroma.KindParse}, false),
		Entry("url", &khroma.Error{Kind: khroma.KindURL}, false),
	)

	It("unwraps to the cause", func() {
		err := &khroma.Error{Kind: khroma.KindTransport, Op: "version", Err: context.Canceled}
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(err.Error()).To(Equal("version: transport error: context canceled"))
	})

	It("formats api errors with status and code", func() {
		err := &khroma.Error{Kind: khroma.KindAPI, Op: "get_collection", Status: 404, Code: "NotFoundError", Message: "collection docs does not exist"}
		Expect(err.Error()).To(Equal("get_collection: api error 404 NotFoundError: collection docs does not exist"))
	})

	Describe("conflict matchers", func() {
		conflict := &khroma.Error{Kind: khroma.KindAPI, Status: http.StatusConflict}
		unique := &khroma.Error{Kind: khroma.KindAPI, Status: http.StatusBadRequest, Code: "UniqueConstraintError"}
		other := &khroma.Error{Kind: khroma.KindAPI, Status: http.StatusInternalServerError}
		transport := &khroma.Error{Kind: khroma.KindTransport, Code: "UniqueConstraintError"}

		It("defaults to 409 or UniqueConstraintError", func() {
			Expect(khroma.DefaultConflictMatcher(conflict)).To(BeTrue())
			Expect(khroma.DefaultConflictMatcher(unique)).To(BeTrue())
			Expect(khroma.DefaultConflictMatcher(other)).To(BeFalse())
			Expect(khroma.DefaultConflictMatcher(transport)).To(BeFalse())
		})

		It("matches on status only", func() {
			m := khroma.ConflictOnStatus(http.StatusUnprocessableEntity)
			Expect(m(conflict)).To(BeFalse())
			Expect(m(&khroma.Error{Kind: khroma.KindAPI, Status: http.StatusUnprocessableEntity})).To(BeTrue())
		})

		It("matches on code only", func() {
			m := khroma.ConflictOnCode("AlreadyExists")
			Expect(m(unique)).To(BeFalse())
			Expect(m(&khroma.Error{Kind: khroma.KindAPI, Code: "AlreadyExists"})).To(BeTrue())
		})
	})
})
