// Provides platform-appropriate paths for the extractor.
//
// Cache paths follow XDG conventions on Linux and platform-native
// conventions elsewhere. The program name "rcpr" is used as the
// subdirectory under each base path.
package paths
