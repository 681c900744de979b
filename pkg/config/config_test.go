package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/khroma/pkg/config"
)

var _ = Describe("Configer", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	writeConfig := func(data string) {
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())
	}

	Describe("NewConfiger", func() {
		It("rejects a path that is not a directory", func() {
			file := filepath.Join(tmpDir, "file")
			Expect(os.WriteFile(file, nil, 0o600)).To(Succeed())

			_, err := config.NewConfiger(file)
			Expect(err).To(MatchError(ContainSubstring("not a directory")))
		})

		It("has no target when no dir is given", func() {
			c, err := config.NewConfiger("")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.GetTarget()).To(BeEmpty())
		})
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads a valid config file and fills in defaults", func() {
			writeConfig(`version = 0

[server]
url = "https://chroma.internal:8443"
token = "secret"

[scope]
tenant = "acme"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Server.URL).To(Equal("https://chroma.internal:8443"))
			Expect(cfg.Server.Token).To(Equal("secret"))
			Expect(cfg.Server.AuthHeader).To(Equal("x-chroma-token"))
			Expect(cfg.Scope.Tenant).To(Equal("acme"))
			Expect(cfg.Scope.Database).To(Equal(config.DefaultDatabase))
		})

		It("loads static headers", func() {
			writeConfig(`[server.headers]
x-team = "search"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Server.Headers).To(HaveKeyWithValue("x-team", "search"))
		})

		It("returns error for malformed TOML", func() {
			writeConfig("not valid toml [[[")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(cfg).To(BeNil())
		})

		It("returns error for unknown keys", func() {
			writeConfig(`[server]
ulr = "http://typo"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("server.ulr")))
		})

		It("returns error for unsupported config version", func() {
			writeConfig("version = 99\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version")))
			Expect(cfg).To(BeNil())
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Server.URL = "http://saved:8000"
			cfg.Log.Debug = true
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Server.URL).To(Equal("http://saved:8000"))
			Expect(loaded.Log.Debug).To(BeTrue())

			info, err := os.Stat(c.GetTarget())
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})

		It("returns error without a target", func() {
			c, err := config.NewConfiger("")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(config.NewDefaultConfig())).To(MatchError("cannot save empty target path"))
		})
	})

	Describe("Validate", func() {
		It("accepts the defaults", func() {
			Expect(config.NewDefaultConfig().Validate()).To(Succeed())
		})

		It("requires a server URL", func() {
			cfg := config.NewDefaultConfig()
			cfg.Server.URL = ""
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("server.url")))
		})

		It("rejects an unparsable timeout", func() {
			cfg := config.NewDefaultConfig()
			cfg.Server.Timeout = "soon"
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("server.timeout")))
		})

		It("requires an auth header when a token is set", func() {
			cfg := config.NewDefaultConfig()
			cfg.Server.Token = "t"
			cfg.Server.AuthHeader = ""
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("auth_header")))
		})
	})

	Describe("TimeoutDuration", func() {
		It("parses Go duration strings", func() {
			d, err := config.ServerConfig{Timeout: "1m30s"}.TimeoutDuration()
			Expect(err).NotTo(HaveOccurred())
			Expect(d).To(Equal(90 * time.Second))
		})

		It("treats an empty timeout as unset", func() {
			d, err := config.ServerConfig{}.TimeoutDuration()
			Expect(err).NotTo(HaveOccurred())
			Expect(d).To(BeZero())
		})

		It("rejects negative durations", func() {
			_, err := config.ServerConfig{Timeout: "-1s"}.TimeoutDuration()
			Expect(err).To(HaveOccurred())
		})
	})
})
