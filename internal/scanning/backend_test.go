package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NewBackend", func() {
	var (
		cfg     Config
		backend Backend
		err     error
	)

	JustBeforeEach(func() {
		backend, err = NewBackend(cfg)
	})

	When("the backend identifier is unknown", func() {
		BeforeEach(func() {
			cfg = Config{Backend: "watson"}
		})

		It("returns ErrConfiguration", func() {
			Expect(err).To(MatchError(ErrConfiguration))
			Expect(err.Error()).To(ContainSubstring("watson"))
			Expect(backend).To(BeNil())
		})
	})

	When("the backend identifier is empty", func() {
		BeforeEach(func() {
			cfg = Config{}
		})

		It("returns ErrConfiguration", func() {
			Expect(err).To(MatchError(ErrConfiguration))
		})
	})

	DescribeTable("missing credentials",
		func(name string) {
			_, err := NewBackend(Config{Backend: name})
			Expect(err).To(MatchError(ErrConfiguration))
		},
		Entry("anthropic", BackendAnthropic),
		Entry("gemini", BackendGemini),
		Entry("openai", BackendOpenAI),
	)

	When("ollama is selected", func() {
		BeforeEach(func() {
			cfg = Config{Backend: " Ollama ", OllamaModel: "qwen2.5vl"}
		})

		It("needs no credential", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(backend.Provider()).To(Equal("ollama"))
			Expect(backend.ModelName()).To(Equal("qwen2.5vl"))
		})
	})

	When("anthropic is selected with a key", func() {
		BeforeEach(func() {
			cfg = Config{Backend: "anthropic", AnthropicKey: "sk-test"}
		})

		It("uses the default model", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(backend.Provider()).To(Equal("anthropic"))
			Expect(backend.ModelName()).To(Equal("claude-sonnet-4-5"))
		})
	})

	When("openai is selected with a key", func() {
		BeforeEach(func() {
			cfg = Config{Backend: "openai", OpenAIKey: "sk-test", OpenAIModel: "gpt-4.1"}
		})

		It("uses the configured model", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(backend.ModelName()).To(Equal("gpt-4.1"))
		})
	})
})

var _ = Describe("SelectBackend", func() {
	It("prefers the configured backend", func() {
		GinkgoT().Setenv(ProviderEnv, "ollama")
		Expect(SelectBackend("gemini")).To(Equal("gemini"))
	})

	It("falls back to AI_PROVIDER", func() {
		GinkgoT().Setenv(ProviderEnv, "openai")
		Expect(SelectBackend("")).To(Equal("openai"))
	})

	It("defaults to anthropic", func() {
		GinkgoT().Setenv(ProviderEnv, "")
		Expect(SelectBackend("  ")).To(Equal(BackendAnthropic))
	})
})
