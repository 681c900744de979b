package khromatest

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/khroma/pkg/khroma/models"
)

func tree(s string) map[string]any {
	var out map[string]any
	ExpectWithOffset(1, json.Unmarshal([]byte(s), &out)).To(Succeed())
	return out
}

var _ = Describe("matchWhere", func() {
	md := models.Metadata{"topic": "rust", "year": 2023.0, "pinned": true}

	DescribeTable("evaluates metadata filters",
		func(filter string, want bool) {
			got, err := matchWhere(tree(filter), md)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("implicit equality", `{"topic":"rust"}`, true),
		Entry("implicit inequality", `{"topic":"ai"}`, false),
		Entry("$eq", `{"year":{"$eq":2023}}`, true),
		Entry("$ne", `{"topic":{"$ne":"ai"}}`, true),
		Entry("$gt", `{"year":{"$gt":2023}}`, false),
		Entry("$gte", `{"year":{"$gte":2023}}`, true),
		Entry("$lt", `{"year":{"$lt":2024}}`, true),
		Entry("$lte", `{"year":{"$lte":2022}}`, false),
		Entry("$in", `{"topic":{"$in":["go","rust"]}}`, true),
		Entry("$nin", `{"topic":{"$nin":["go","rust"]}}`, false),
		Entry("bool equality", `{"pinned":true}`, true),
		Entry("numbers never equal strings", `{"year":"2023"}`, false),
		Entry("missing key with $ne", `{"author":{"$ne":"x"}}`, false),
		Entry("$and", `{"$and":[{"topic":"rust"},{"year":{"$gte":2020}}]}`, true),
		Entry("$and with a miss", `{"$and":[{"topic":"rust"},{"year":{"$lt":2020}}]}`, false),
		Entry("$or", `{"$or":[{"topic":"ai"},{"year":2023}]}`, true),
		Entry("nested", `{"$or":[{"topic":"ai"},{"$and":[{"pinned":true},{"year":{"$in":[2023]}}]}]}`, true),
	)

	It("rejects an unknown operator", func() {
		_, err := matchWhere(tree(`{"year":{"$near":1}}`), md)
		Expect(err).To(MatchError(ContainSubstring("unknown operator")))
	})

	It("rejects an ordering operator on a string", func() {
		_, err := matchWhere(tree(`{"year":{"$gt":"a"}}`), md)
		Expect(err).To(MatchError(ContainSubstring("expects a number")))
	})

	It("rejects an empty logical operator", func() {
		_, err := matchWhere(tree(`{"$and":[]}`), md)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("matchDocument", func() {
	doc := models.Ptr("about Rust and Go")

	DescribeTable("evaluates document filters",
		func(filter string, want bool) {
			got, err := matchDocument(tree(filter), doc)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("$contains", `{"$contains":"Rust"}`, true),
		Entry("$not_contains", `{"$not_contains":"Rust"}`, false),
		Entry("$regex", `{"$regex":"^about"}`, true),
		Entry("$not_regex", `{"$not_regex":"^about"}`, false),
		Entry("$and", `{"$and":[{"$contains":"Rust"},{"$contains":"Go"}]}`, true),
		Entry("$or", `{"$or":[{"$contains":"Chroma"},{"$contains":"Go"}]}`, true),
	)

	It("treats a missing document as empty text", func() {
		got, err := matchDocument(tree(`{"$not_contains":"Rust"}`), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeTrue())
	})

	It("rejects an invalid regex", func() {
		_, err := matchDocument(tree(`{"$regex":"("}`), doc)
		Expect(err).To(MatchError(ContainSubstring("invalid regex")))
	})
})

var _ = Describe("distance", func() {
	It("computes squared L2", func() {
		Expect(squaredL2([]float32{1, 2, 3}, []float32{1, 2, 5})).To(BeNumerically("~", 4, 1e-6))
	})

	It("densifies sparse vectors", func() {
		e := models.SparseEmbeddings(&models.SparseVector{Indices: []int{0, 3}, Values: []float32{1, 2}})
		Expect(dense(e)).To(Equal([][]float32{{1, 0, 0, 2}}))
	})

	It("converts int vectors", func() {
		Expect(dense(models.IntEmbeddings([]int64{1, 2}))).To(Equal([][]float32{{1, 2}}))
	})
})
