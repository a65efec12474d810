package binding

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/bridge"
	"github.com/wippyai/hostbridge/host"
	"github.com/wippyai/hostbridge/telemetry"
)

// Call0 calls a zero-argument host callback and waits for it to finish.
// callback may be a plain function value, for example one read with Get.
func Call0(ctx context.Context, b *bridge.Bridge, callback host.Handle) error {
	h, err := b.Bind(ctx, callback, nil)
	if err != nil {
		return err
	}
	_, err = b.AwaitForeign(ctx, h)
	return err
}

// CallAsync calls callback(n), which returns a promise of an i32, and
// waits for the promised value.
func CallAsync(ctx context.Context, b *bridge.Bridge, callback host.Handle, n int32) (int32, error) {
	h, err := b.Bind(ctx, callback, nil)
	if err != nil {
		return 0, err
	}
	v, err := bridge.Await[int32](ctx, b, h, n)
	if err != nil {
		return 0, err
	}
	Logger().Debug("async callback settled", zap.String("callable", h.Name), zap.Int32("value", v))
	return v, nil
}

// CallAsyncOnObject is CallAsync for obj.name(n), called with obj as the
// receiver.
func CallAsyncOnObject(ctx context.Context, b *bridge.Bridge, obj host.Handle, name string, n int32) (int32, error) {
	h, err := b.Resolve(ctx, obj, name, nil)
	if err != nil {
		return 0, err
	}
	v, err := bridge.Await[int32](ctx, b, h, n)
	if err != nil {
		return 0, err
	}
	Logger().Debug("async method settled", zap.String("callable", name), zap.Int32("value", v))
	return v, nil
}

// FetchClusterData calls receiver.fetchClusterInfo() and
// receiver.fetchLicenseInfo() concurrently and pairs their results.
func FetchClusterData(ctx context.Context, b *bridge.Bridge, receiver host.Handle) (telemetry.ClusterData, error) {
	clusterInfo, err := b.Resolve(ctx, receiver, "fetchClusterInfo", nil)
	if err != nil {
		return telemetry.ClusterData{}, err
	}
	licenseInfo, err := b.Resolve(ctx, receiver, "fetchLicenseInfo", nil)
	if err != nil {
		return telemetry.ClusterData{}, err
	}

	info, license, err := bridge.Join2[telemetry.ClusterInfo, telemetry.License](ctx, b,
		bridge.NewCall(clusterInfo),
		bridge.NewCall(licenseInfo),
	)
	if err != nil {
		return telemetry.ClusterData{}, err
	}

	data := telemetry.ClusterData{ClusterInfo: info, LicenseInfo: license}
	Logger().Debug("cluster data fetched",
		zap.String("cluster", info.ClusterName), zap.String("license", license.Type))
	return data, nil
}
