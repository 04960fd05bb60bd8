// Package resource guarantees ordered teardown of external resources.
//
// A Registry records every successful acquisition. ReleaseAll walks the
// records newest first, calls each release exactly once and keeps going when
// one fails, so a failure at acquisition k leaves exactly k-1 resources to
// release.
//
//	reg := resource.NewRegistry(resource.WithReleaseTimeout(10 * time.Second))
//	if _, err := reg.AcquireResource(ctx, camera); err != nil {
//	    // nothing was added for camera
//	}
//	for _, out := range reg.ReleaseAll(ctx) {
//	    if out.Err != nil {
//	        logger.Error("release failed", log.String("resource", out.Name), log.Err(out.Err))
//	    }
//	}
package resource
