// Package image pulls manylinux build images from their registry and
// unpacks them into a plain directory tree.
//
// A [Client] authenticates against the registry's token endpoint with
// pull scope, fetches the image manifest, and streams each layer blob to
// disk while verifying its digest. Downloads and layer application are
// overlapped: while one layer is being unpacked into the destination, the
// next one is already downloading. Layers are always applied in manifest
// order, with OCI whiteout entries honored, so the resulting tree is
// equivalent to the image's flattened root filesystem.
//
// Bare image names (e.g. "manylinux2014_x86_64") resolve under the
// quay.io/pypa namespace where the manylinux images are published; full
// references are accepted as well.
package image
