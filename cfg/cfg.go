/**
 * Package cfg is the kernel's boot configuration: device paths and sizing
 * knobs, bindable to command-line flags and environment variables via
 * spf13/viper, following GoogleCloudPlatform-gcsfuse's pflag-plus-viper
 * binding pattern (the teacher itself has no configuration layer).
 */
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// / Config holds every boot-time knob the kernel context needs to come up
// / (spec §6).
type Config struct {
	// / FsImage is the path to the file-system disk image.
	FsImage string
	// / FsSectors is the file-system disk's capacity in sectors.
	FsSectors int
	// / SwapImage is the path to the swap device image.
	SwapImage string
	// / SwapSectors is the swap device's capacity in sectors.
	SwapSectors int
	// / Frames is the number of physical frames the allocator pool hands out.
	Frames int
	// / Format requests free-map/root-directory initialization on boot,
	// / mirroring the teacher's -f flag.
	Format bool
	// / MetricsAddr is the address the serve command serves Prometheus
	// / metrics on; when empty, serve uses ":9090".
	MetricsAddr string
}

// / Defaults returns the configuration's baseline values, overridden by
// / BindFlags/viper at boot.
func Defaults() Config {
	return Config{
		FsImage:     "fs.img",
		FsSectors:   8192,
		SwapImage:   "swap.img",
		SwapSectors: 8192,
		Frames:      256,
		Format:      false,
		MetricsAddr: "",
	}
}

// / BindFlags registers every Config knob on flags and binds it into v,
// / so callers can later populate a Config via Load.
func BindFlags(flags *pflag.FlagSet, v *viper.Viper) {
	d := Defaults()
	flags.String("fs-image", d.FsImage, "path to the file-system disk image")
	flags.Int("fs-sectors", d.FsSectors, "file-system disk capacity in sectors")
	flags.String("swap-image", d.SwapImage, "path to the swap device image")
	flags.Int("swap-sectors", d.SwapSectors, "swap device capacity in sectors")
	flags.Int("frames", d.Frames, "number of physical frames in the allocator pool")
	flags.BoolP("format", "f", d.Format, "format the file system before mounting")
	flags.String("metrics-addr", d.MetricsAddr, "address the serve command serves Prometheus metrics on (empty means :9090)")

	v.BindPFlag("fs.image", flags.Lookup("fs-image"))
	v.BindPFlag("fs.sectors", flags.Lookup("fs-sectors"))
	v.BindPFlag("swap.image", flags.Lookup("swap-image"))
	v.BindPFlag("swap.sectors", flags.Lookup("swap-sectors"))
	v.BindPFlag("frames", flags.Lookup("frames"))
	v.BindPFlag("format", flags.Lookup("format"))
	v.BindPFlag("metrics_addr", flags.Lookup("metrics-addr"))

	v.SetEnvPrefix("BISCUIT")
	v.AutomaticEnv()
}

// / Load reads v's bound values into a Config.
func Load(v *viper.Viper) Config {
	return Config{
		FsImage:     v.GetString("fs.image"),
		FsSectors:   v.GetInt("fs.sectors"),
		SwapImage:   v.GetString("swap.image"),
		SwapSectors: v.GetInt("swap.sectors"),
		Frames:      v.GetInt("frames"),
		Format:      v.GetBool("format"),
		MetricsAddr: v.GetString("metrics_addr"),
	}
}
