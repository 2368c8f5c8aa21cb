// Provides platform-appropriate paths for builder state and the build cache.
//
// All paths follow XDG conventions on Linux and platform-native conventions
// on macOS and Windows. The program name "forgepack" is used as the
// subdirectory under each base path.
package paths
